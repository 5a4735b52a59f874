// Package security sets response headers shared by every route.
package security

import (
	"net/http"
	"strconv"
	"time"
)

// Headers marks responses as non-sniffable and uncacheable. Module answers
// depend on the cart and must never be served from an intermediary cache.
type Headers struct {
	// HSTSMaxAge enables Strict-Transport-Security on TLS requests when positive.
	HSTSMaxAge time.Duration
}

// Middleware attaches the headers before delegating.
func (h Headers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "no-referrer")
		headers.Set("Cache-Control", "no-store")
		if h.HSTSMaxAge > 0 && r.TLS != nil {
			headers.Set("Strict-Transport-Security", "max-age="+strconv.Itoa(int(h.HSTSMaxAge/time.Second)))
		}
		next.ServeHTTP(w, r)
	})
}
