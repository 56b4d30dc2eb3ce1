package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/winestore/pkg/logger"
)

func serveSession(t *testing.T, cfg SessionConfig, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	var seen string
	h := Session(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.SessionIDFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func TestSession_IssuesNewID(t *testing.T) {
	rec, seen := serveSession(t, DefaultSessionConfig(), httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(SessionIDHeader))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "storefront_session", cookies[0].Name)
	assert.Equal(t, seen, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
}

func TestSession_HeaderWins(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionIDHeader, id)
	req.AddCookie(&http.Cookie{Name: "storefront_session", Value: uuid.NewString()})

	rec, seen := serveSession(t, SessionConfig{CookieName: "storefront_session"}, req)

	assert.Equal(t, id, seen)
	assert.Empty(t, rec.Result().Cookies(), "known session without max age does not refresh the cookie")
}

func TestSession_CookieUsed(t *testing.T) {
	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: id})

	rec, seen := serveSession(t, SessionConfig{CookieName: "sid", MaxAge: time.Hour, Secure: true}, req)

	assert.Equal(t, id, seen)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, 3600, cookies[0].MaxAge)
	assert.True(t, cookies[0].Secure)
}

func TestSession_InvalidIDReplaced(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionIDHeader, "../../etc/passwd")

	_, seen := serveSession(t, DefaultSessionConfig(), req)

	assert.NotEqual(t, "../../etc/passwd", seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}
