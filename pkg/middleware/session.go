package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/winestore/pkg/logger"
)

const SessionIDHeader = "X-Session-ID"

// SessionConfig configures the anonymous visitor session.
type SessionConfig struct {
	CookieName string
	Secure     bool
	MaxAge     time.Duration
}

// DefaultSessionConfig returns a 30 day "storefront_session" cookie.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		CookieName: "storefront_session",
		MaxAge:     30 * 24 * time.Hour,
	}
}

// Session resolves the visitor session from the X-Session-ID header or the
// session cookie, issuing a new UUID when neither carries a valid one. The
// resolved ID is stored in the context (logger.SessionIDFromContext) and
// echoed back in the X-Session-ID response header.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionConfig().CookieName
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := sessionFromRequest(r, cfg.CookieName)
			if !ok {
				id = uuid.NewString()
			}

			if !ok || cfg.MaxAge > 0 {
				http.SetCookie(w, &http.Cookie{
					Name:     cfg.CookieName,
					Value:    id,
					Path:     "/",
					MaxAge:   int(cfg.MaxAge.Seconds()),
					HttpOnly: true,
					Secure:   cfg.Secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(SessionIDHeader, id)

			ctx := logger.WithSessionID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromRequest(r *http.Request, cookieName string) (string, bool) {
	if id := r.Header.Get(SessionIDHeader); validSessionID(id) {
		return id, true
	}
	if c, err := r.Cookie(cookieName); err == nil && validSessionID(c.Value) {
		return c.Value, true
	}
	return "", false
}

func validSessionID(id string) bool {
	if id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
