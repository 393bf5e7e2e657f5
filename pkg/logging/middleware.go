package logging

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// RequestIDMiddleware tags each request with an X-Request-ID (reusing the
// client's when present) and logs completion. Hover endpoints are chatty, so
// successful POSTs log at trace level.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start).Milliseconds()

		switch {
		case rec.status >= 500:
			ErrorContext(ctx, "request failed", "method", r.Method, "path", r.URL.Path, "status", rec.status, "durationMs", elapsed)
		case rec.status >= 400:
			WarnContext(ctx, "request rejected", "method", r.Method, "path", r.URL.Path, "status", rec.status, "durationMs", elapsed)
		case r.Method == http.MethodPost:
			Trace("request completed", "requestID", requestID, "path", r.URL.Path, "durationMs", elapsed)
		default:
			DebugContext(ctx, "request completed", "method", r.Method, "path", r.URL.Path, "status", rec.status, "durationMs", elapsed)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (rw *statusRecorder) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
