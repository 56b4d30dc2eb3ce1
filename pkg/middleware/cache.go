package middleware

import (
	"fmt"
	"net/http"
)

// CacheControl lets browsers cache GET responses for maxAge seconds. The
// responses are private since the session middleware may set a cookie.
func CacheControl(maxAge int) func(http.Handler) http.Handler {
	value := fmt.Sprintf("private, max-age=%d", maxAge)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore forbids caching. Cart and checkout responses are per-session.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
