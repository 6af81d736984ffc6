// Package health serves liveness and readiness probes.
//
// Every registered probe runs on its own ticker. A probe flips to unhealthy
// only after failureThreshold consecutive failures and back to healthy after
// successThreshold consecutive passes, so a single slow ping does not pull the
// instance out of the load balancer.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// CheckFunc reports nil when the checked dependency is usable.
type CheckFunc func(ctx context.Context) error

// Kind selects the endpoint a probe contributes to.
type Kind int

const (
	// Liveness probes decide whether the process should be restarted.
	Liveness Kind = iota
	// Readiness probes decide whether the instance should receive traffic.
	Readiness
)

func (k Kind) String() string {
	if k == Readiness {
		return "readiness"
	}
	return "liveness"
}

// Option tunes a single probe.
type Option func(*probe)

// WithTimeout bounds one run of the probe. Defaults to 2 seconds.
func WithTimeout(d time.Duration) Option {
	return func(p *probe) { p.timeout = d }
}

// WithThresholds sets how many consecutive failures mark the probe unhealthy
// and how many consecutive passes mark it healthy again. Defaults to 3 and 1.
func WithThresholds(failure, success int) Option {
	return func(p *probe) {
		p.failureThreshold = max(1, failure)
		p.successThreshold = max(1, success)
	}
}

// probe is run by exactly one goroutine. The counters are owned by it; the
// healthy flag and last error are read concurrently by the endpoints.
type probe struct {
	name             string
	kind             Kind
	timeout          time.Duration
	check            CheckFunc
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails  int
	passes int
}

func (p *probe) err() error {
	if e := p.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

// run executes the check once and reports whether the healthy state changed.
func (p *probe) run(ctx context.Context) (changed bool) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	p.lastErr.Store(&err)

	was := p.healthy.Load()
	if err != nil {
		p.passes = 0
		p.fails++
		if p.fails >= p.failureThreshold {
			p.healthy.Store(false)
		}
	} else {
		p.fails = 0
		p.passes++
		if p.passes >= p.successThreshold {
			p.healthy.Store(true)
		}
	}
	return was != p.healthy.Load()
}

// Health owns the probes of one service instance.
type Health struct {
	lg    *zap.Logger
	ready atomic.Bool

	mu     sync.RWMutex
	probes []*probe
	cancel context.CancelFunc
}

// New creates a Health that starts not ready. Call SetReady(true) once the
// service has finished initialization.
func New(lg *zap.Logger) *Health {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Health{lg: lg}
}

// Add registers a probe. Probes are assumed healthy until they fail enough
// times in a row.
func (h *Health) Add(kind Kind, name string, check CheckFunc, opts ...Option) {
	p := &probe{
		name:             name,
		kind:             kind,
		timeout:          2 * time.Second,
		check:            check,
		failureThreshold: 3,
		successThreshold: 1,
	}
	for _, o := range opts {
		o(p)
	}
	p.healthy.Store(true)

	h.mu.Lock()
	h.probes = append(h.probes, p)
	h.mu.Unlock()
}

// Start runs every registered probe in the background until Stop is called
// or ctx is done.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = cancel
	probes := append([]*probe(nil), h.probes...)
	h.mu.Unlock()

	for _, p := range probes {
		go h.loop(ctx, p, interval)
	}
}

func (h *Health) loop(ctx context.Context, p *probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if p.run(ctx) {
			h.logChange(p)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Health) logChange(p *probe) {
	fields := []zap.Field{
		zap.String("probe", p.name),
		zap.Stringer("kind", p.kind),
	}
	if p.healthy.Load() {
		h.lg.Info("Probe recovered", fields...)
		return
	}
	h.lg.Warn("Probe unhealthy", append(fields, zap.Error(p.err()))...)
}

// Stop cancels the background probes. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate, typically true after startup and
// false when graceful shutdown begins.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness probe passes.
func (h *Health) IsReady() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

type failure struct {
	name string
	msg  string
}

func (h *Health) failures(kind Kind) []failure {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []failure
	for _, p := range h.probes {
		if p.kind != kind || p.healthy.Load() {
			continue
		}
		msg := "probe is unhealthy"
		if err := p.err(); err != nil {
			msg = err.Error()
		}
		out = append(out, failure{name: p.name, msg: msg})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// ReadyEndpoint serves /readyz. It fails while the manual gate is closed even
// if every probe passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures = append([]failure{{name: "gate", msg: "service is not ready"}}, failures...)
	}
	writeStatus(w, failures)
}

// writeStatus renders {"status":"ok"} or
// {"status":"unhealthy","checks":[{"name":...,"error":...}]}.
func writeStatus(w http.ResponseWriter, failures []failure) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)

	status := http.StatusOK
	e.Obj(func(e *jx.Encoder) {
		if len(failures) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		status = http.StatusServiceUnavailable
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, f := range failures {
					e.Obj(func(e *jx.Encoder) {
						e.Field("name", func(e *jx.Encoder) { e.Str(f.name) })
						e.Field("error", func(e *jx.Encoder) { e.Str(f.msg) })
					})
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
