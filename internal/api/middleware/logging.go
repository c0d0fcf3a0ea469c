package middleware

import (
	"net/http"
	"time"

	"agt_platform/internal/platform/logger"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RequestLogger writes one structured line per request.
func RequestLogger(next http.Handler) http.Handler {
	log := logger.Component("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			ev := log.Info()
			switch {
			case ww.Status() >= 500:
				ev = log.Error()
			case ww.Status() >= 400:
				ev = log.Warn()
			}
			ev.Str("request_id", chiMiddleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("took", time.Since(start)).
				Msg("request")
		}()
		next.ServeHTTP(ww, r)
	})
}
