// Package middleware provides the HTTP middleware the host wraps around the
// action pipeline.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// CORS handles Cross-Origin Resource Sharing for the listed origins. An
// entry of "*" allows any origin; an entry of "*.example.com" allows its
// subdomains.
type CORS struct {
	allowedOrigins []string
	allowAll       bool
}

// NewCORS creates the CORS middleware.
func NewCORS(allowedOrigins []string) *CORS {
	c := &CORS{}
	for _, origin := range allowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			c.allowAll = true
		}
		c.allowedOrigins = append(c.allowedOrigins, origin)
	}
	return c
}

// Middleware returns the handler wrapper.
func (c *CORS) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Add("Vary", "Origin")
			if !c.Allowed(origin) {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Expose-Headers", "X-Trace-ID, X-Cache, Retry-After")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Accept, Content-Type, Authorization, X-Trace-ID")
				h.Set("Access-Control-Max-Age", "3600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Allowed reports whether origin may make cross-origin requests.
func (c *CORS) Allowed(origin string) bool {
	if c.allowAll {
		return true
	}
	for _, allowed := range c.allowedOrigins {
		if allowed == origin {
			return true
		}
		if suffix, ok := strings.CutPrefix(allowed, "*."); ok {
			host := origin
			if i := strings.Index(host, "://"); i >= 0 {
				host = host[i+3:]
			}
			if strings.HasSuffix(host, "."+suffix) {
				return true
			}
		}
	}
	return false
}
