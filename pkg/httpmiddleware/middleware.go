// Package httpmiddleware provides net/http middlewares shared by the API
// server: panic recovery, request ids, logger injection, request logging,
// OpenTelemetry instrumentation and rate limiting.
package httpmiddleware

import "net/http"

// Middleware wraps an http.Handler. It is compatible with chi's Use.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware is the outermost.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RouteFinder returns the matched route pattern of r, or "" when the request
// did not match a route. It is called after the handler has run.
type RouteFinder func(r *http.Request) string
