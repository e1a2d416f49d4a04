package httpapi

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"time"

	"stockgate/internal/observability"
)

// Limiter is the admission control surface applied in front of the API.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Wrap applies request metrics and optional rate limiting to the mux. Route
// labels follow the mux patterns, so each endpoint gets its own counters.
func Wrap(next http.Handler, metrics *observability.Metrics, limiter Limiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		span := metrics.Start(r.Method + " " + r.URL.Path)

		if limiter != nil {
			start := time.Now()
			if err := limiter.Wait(r.Context()); err != nil {
				span.End(err)
				http.Error(w, "rate limited", http.StatusTooManyRequests)
				return
			}
			if waited := time.Since(start); waited > time.Millisecond {
				metrics.AddRateLimitWait(waited)
			}
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		if recorder.status >= http.StatusInternalServerError {
			span.End(errServerStatus)
			return
		}
		span.End(nil)
	})
}

var errServerStatus = statusError{}

type statusError struct{}

func (statusError) Error() string { return "server error status" }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack keeps websocket upgrades working behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hj.Hijack()
}
