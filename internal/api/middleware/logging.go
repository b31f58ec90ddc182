package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger emits one structured line per request. Server errors log at
// error level and client errors at warn, so feed-outage fallout stands
// out in the API logs without any filtering.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := observe(w)

			next.ServeHTTP(sw, r)

			var evt *zerolog.Event
			switch {
			case sw.status >= http.StatusInternalServerError:
				evt = log.Error()
			case sw.status >= http.StatusBadRequest:
				evt = log.Warn()
			default:
				evt = log.Info()
			}

			evt = evt.
				Str("request_id", GetRequestID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Int64("bytes", sw.bytes).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr)

			if q := r.URL.RawQuery; q != "" {
				evt = evt.Str("query", q)
			}
			if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
				evt = evt.
					Str("trace_id", sc.TraceID().String()).
					Str("span_id", sc.SpanID().String())
			}

			evt.Msg("request served")
		})
	}
}
