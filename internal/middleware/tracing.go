package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/mvc_layer/internal/httputil"
	"github.com/R3E-Network/mvc_layer/internal/logging"
)

// TraceHeader carries the trace ID in requests and responses.
const TraceHeader = "X-Trace-ID"

// Tracing attaches a trace ID to every request, echoes it in the response
// and logs the completed request.
func Tracing(logger *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			traceID := r.Header.Get(TraceHeader)
			if traceID == "" || len(traceID) > 128 {
				traceID = logging.NewTraceID()
			}
			ctx := logging.WithTraceID(r.Context(), traceID)
			w.Header().Set(TraceHeader, traceID)

			wrapped := newStatusWriter(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			logger.LogRequest(ctx, r.Method, r.URL.Path, wrapped.status, time.Since(start))
		})
	}
}

// Recover turns a panic that escaped the handler into an opaque 500.
func Recover(logger *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := newStatusWriter(w)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.WithContext(r.Context()).WithField("panic", rec).Error("Recovered from panic")
				if !wrapped.written {
					httputil.InternalError(wrapped, r)
				}
			}()
			next.ServeHTTP(wrapped, r)
		})
	}
}
