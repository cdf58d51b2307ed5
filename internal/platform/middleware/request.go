package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	dErrors "ulp-gateway/pkg/domain-errors"
	"ulp-gateway/pkg/platform/httputil"
	"ulp-gateway/pkg/requestcontext"
)

// HeaderRequestID carries the correlation id in both directions.
const HeaderRequestID = "X-Request-ID"

// RequestID reuses an inbound X-Request-ID or mints one, echoes it on the
// response and stores it in the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), id)))
	})
}

// HTTPObserver receives request latency. *metrics.Metrics implements it.
type HTTPObserver interface {
	ObserveHTTP(method, route, code string, d time.Duration)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logger logs one line per request and reports its latency to observer (may be nil).
func Logger(logger *slog.Logger, observer HTTPObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			elapsed := time.Since(start)
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			if observer != nil {
				observer.ObserveHTTP(r.Method, route, strconv.Itoa(rec.status), elapsed)
			}
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"route", route,
				"status", rec.status,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", requestcontext.RequestID(r.Context()),
			)
		})
	}
}

// Recovery turns a handler panic into a 500 and logs the stack.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rv := recover(); rv != nil {
					if rv == http.ErrAbortHandler {
						panic(rv)
					}
					logger.ErrorContext(r.Context(), "panic recovered",
						"panic", rv,
						"stack", string(debug.Stack()),
						"request_id", requestcontext.RequestID(r.Context()),
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
