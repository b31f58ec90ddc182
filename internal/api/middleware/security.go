package middleware

import (
	"net/http"
	"os"

	"github.com/fuelscout/fuelscout/internal/api/models"
)

// SecurityHeaders sets the response headers a public read-only JSON API
// should carry. The service serves no markup and embeds nowhere, so the
// content-security policy is a blanket deny.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		h.Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects plain-HTTP requests when REQUIRE_TLS=true is set
// in the environment. TLS terminates at the load balancer, so the check
// reads X-Forwarded-Proto; requests without the header (direct
// connections, local development) pass through.
func RequireTLS(next http.Handler) http.Handler {
	if os.Getenv("REQUIRE_TLS") != "true" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proto := r.Header.Get("X-Forwarded-Proto")
		if proto == "" || proto == "https" {
			next.ServeHTTP(w, r)
			return
		}

		problem := models.NewProblem(
			"https://api.fuelscout.uk/problems/tls-required",
			"TLS required",
			http.StatusForbidden,
			GetRequestID(r.Context()),
		)
		problem.Detail = "This endpoint requires HTTPS"
		problem.Instance = r.URL.Path
		problem.Write(w)
	})
}
