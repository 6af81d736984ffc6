// Package logger builds the zap logger used by the command line tools. The
// API server gets its logger from the sdk runner instead.
package logger

import (
	"io"
	"os"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the logger output.
type Options struct {
	// Level is a zap level name such as "debug" or "info". Defaults to info.
	Level string
	// File, when set, additionally writes to a rotated log file.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Stdout overrides the console destination. Defaults to os.Stdout.
	Stdout io.Writer
}

// New returns a JSON logger writing to stdout and, when Options.File is set,
// to a lumberjack-rotated file. The returned close func flushes the logger and
// closes the file.
func New(opts Options) (*zap.Logger, func() error, error) {
	level := zap.InfoLevel
	if opts.Level != "" {
		l, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "parse level %q", opts.Level)
		}
		level = l
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.MillisDurationEncoder

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	sinks := []zapcore.WriteSyncer{zapcore.AddSync(stdout)}

	var rotated *lumberjack.Logger
	if opts.File != "" {
		rotated = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    withDefault(opts.MaxSizeMB, 100),
			MaxBackups: withDefault(opts.MaxBackups, 7),
			MaxAge:     withDefault(opts.MaxAgeDays, 30),
			Compress:   opts.Compress,
		}
		sinks = append(sinks, zapcore.AddSync(rotated))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.NewMultiWriteSyncer(sinks...),
		level,
	)
	lg := zap.New(core, zap.AddCaller())

	closeFn := func() error {
		_ = lg.Sync()
		if rotated != nil {
			return rotated.Close()
		}
		return nil
	}
	return lg, closeFn, nil
}

func withDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
