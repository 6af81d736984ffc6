package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

const maxBodySize = 1 << 20

// requestError is a malformed request. It is reported as 400 invalid_request.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// decodeBody reads a JSON object from the request body and hands every field
// to fn. Unknown fields must be skipped by fn.
func decodeBody(w http.ResponseWriter, r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return badRequest("read body: %v", err)
	}
	err = jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		return fn(d, string(key))
	})
	if err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			return reqErr
		}
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

func decodeOptionalInt64(d *jx.Decoder) (*int64, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func fieldStr(e *jx.Encoder, name, v string) {
	e.Field(name, func(e *jx.Encoder) { e.Str(v) })
}

func fieldInt64(e *jx.Encoder, name string, v int64) {
	e.Field(name, func(e *jx.Encoder) { e.Int64(v) })
}

func fieldInt(e *jx.Encoder, name string, v int) {
	e.Field(name, func(e *jx.Encoder) { e.Int(v) })
}

func fieldBool(e *jx.Encoder, name string, v bool) {
	e.Field(name, func(e *jx.Encoder) { e.Bool(v) })
}

// fieldAmount renders a monetary amount as a string with two decimals.
func fieldAmount(e *jx.Encoder, name string, v decimal.Decimal) {
	e.Field(name, func(e *jx.Encoder) { e.Str(v.StringFixed(2)) })
}

func fieldDecimal(e *jx.Encoder, name string, v decimal.Decimal) {
	e.Field(name, func(e *jx.Encoder) { e.Str(v.String()) })
}
