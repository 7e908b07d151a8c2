package middleware

import (
	"context"
	"log/slog"
	"maps"
	"net/http"
	"sync"
	"time"
)

// Timeout bounds each request to d. If the handler has not started its
// response by then, the client gets a 504 and later writes from the handler
// fail with http.ErrHandlerTimeout. A response that has already started is
// left to finish. A non-positive d disables the bound.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			tw := &timeoutWriter{w: w, h: make(http.Header)}
			done := make(chan struct{})
			panicked := make(chan any, 1)
			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- p
					}
				}()
				next.ServeHTTP(tw, r.WithContext(ctx))
				close(done)
			}()

			select {
			case p := <-panicked:
				panic(p)
			case <-done:
				tw.finish()
			case <-ctx.Done():
				if tw.expire() {
					slog.Warn("request timed out", "method", r.Method, "path", r.URL.Path, "timeout", d)
					return
				}
				select {
				case p := <-panicked:
					panic(p)
				case <-done:
				}
			}
		})
	}
}

// timeoutWriter keeps its own header map so the handler goroutine never
// touches the real one before it owns the response. All access to w happens
// under mu.
type timeoutWriter struct {
	w http.ResponseWriter
	h http.Header

	mu       sync.Mutex
	started  bool
	timedOut bool
}

func (tw *timeoutWriter) Header() http.Header { return tw.h }

func (tw *timeoutWriter) WriteHeader(code int) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut || tw.started {
		return
	}
	tw.start()
	tw.w.WriteHeader(code)
}

func (tw *timeoutWriter) Write(b []byte) (int, error) {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.timedOut {
		return 0, http.ErrHandlerTimeout
	}
	if !tw.started {
		tw.start()
	}
	return tw.w.Write(b)
}

// start publishes the handler's headers. mu must be held.
func (tw *timeoutWriter) start() {
	tw.started = true
	maps.Copy(tw.w.Header(), tw.h)
}

// finish runs after the handler returned; a handler that wrote nothing still
// gets its headers sent with the implicit 200.
func (tw *timeoutWriter) finish() {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if !tw.started && !tw.timedOut {
		maps.Copy(tw.w.Header(), tw.h)
	}
}

// expire answers 504 and reports true when the response had not started.
// Otherwise the caller must wait for the handler.
func (tw *timeoutWriter) expire() bool {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.started {
		return false
	}
	tw.timedOut = true
	writeJSONError(tw.w, http.StatusGatewayTimeout, "request timeout")
	return true
}
