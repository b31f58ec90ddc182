// Package middleware provides the HTTP middleware stack for the fuelscout API.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// RequestIDHeader carries the correlation ID between client and server.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID assigns every request a correlation ID and echoes it in the
// response. A caller-supplied X-Request-Id is kept so the ID survives
// proxy hops, capped at 64 characters to keep log lines bounded.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = newRequestID()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// newRequestID returns a compact ID of the form req_<20 hex chars>.
func newRequestID() string {
	return "req_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// GetRequestID returns the request's correlation ID, or the empty
// string outside the middleware stack.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
