package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go_trial/ordertaking/auth"
	"go_trial/ordertaking/logger"
	"go_trial/ordertaking/models"
	"go_trial/ordertaking/session"
)

func newAuthenticator() *Authenticator {
	return &Authenticator{
		Issuer:   auth.NewIssuer("mw-secret", time.Hour, 24*time.Hour),
		Sessions: session.NewMemoryStore(),
		Log:      logger.Discard(),
	}
}

func accessToken(t *testing.T, a *Authenticator, role models.Role) (string, *auth.Claims) {
	t.Helper()
	token, claims, err := a.Issuer.IssueAccess(&models.User{Username: "u-" + string(role), Role: role})
	require.NoError(t, err)
	return token, claims
}

var echoPrincipal = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	_, _ = w.Write([]byte(p.Username))
})

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "cookie"})
	assert.Equal(t, "cookie", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer bearer")
	assert.Equal(t, "bearer", TokenFromRequest(r))

	r.Header.Set("token", "header")
	assert.Equal(t, "header", TokenFromRequest(r))
}

func TestSetCurrentUser(t *testing.T) {
	a := newAuthenticator()
	h := a.SetCurrentUser(echoPrincipal)
	token, claims := accessToken(t, a, models.RoleUser)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("token", "garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-USER", rec.Body.String())

	require.NoError(t, a.Sessions.Revoke(context.Background(), claims.ID, time.Hour))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSetCurrentUser_UserRevocation(t *testing.T) {
	a := newAuthenticator()
	h := a.SetCurrentUser(echoPrincipal)
	serve := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.Header.Set("token", token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	old, claims := accessToken(t, a, models.RoleUser)
	require.NoError(t, a.Sessions.RevokeUser(context.Background(), claims.Username, claims.IssuedAt.Time, time.Hour))
	assert.Equal(t, http.StatusUnauthorized, serve(old))

	b := newAuthenticator()
	h = b.SetCurrentUser(echoPrincipal)
	require.NoError(t, b.Sessions.RevokeUser(context.Background(), "u-USER", time.Now().Add(-time.Minute), time.Hour))
	fresh, _ := accessToken(t, b, models.RoleUser)
	assert.Equal(t, http.StatusOK, serve(fresh), "tokens issued after the cut-off still work")
}

func TestRequireRole(t *testing.T) {
	a := newAuthenticator()
	h := a.SetCurrentUser(RequireRole(models.RoleAdmin, logger.Discard())(echoPrincipal))

	for role, want := range map[models.Role]int{models.RoleUser: http.StatusForbidden, models.RoleAdmin: http.StatusOK} {
		token, _ := accessToken(t, a, role)
		req := httptest.NewRequest(http.MethodPost, "/api/users", nil)
		req.Header.Set("token", token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, string(role))
	}
}

func TestDashboardGate(t *testing.T) {
	a := newAuthenticator()
	h := a.DashboardGate(echoPrincipal)
	userToken, _ := accessToken(t, a, models.RoleUser)
	adminToken, _ := accessToken(t, a, models.RoleAdmin)

	tests := []struct {
		name     string
		path     string
		token    string
		code     int
		location string
	}{
		{name: "anonymous dashboard", path: "/user-dashboard", code: http.StatusFound, location: "/login"},
		{name: "anonymous admin subpage", path: "/admin-dashboard/menu", code: http.StatusFound, location: "/login"},
		{name: "anonymous login page", path: "/login", code: http.StatusOK},
		{name: "user on login", path: "/login", token: userToken, code: http.StatusFound, location: "/user-dashboard"},
		{name: "admin on root", path: "/", token: adminToken, code: http.StatusFound, location: "/admin-dashboard"},
		{name: "user on admin area", path: "/admin-dashboard", token: userToken, code: http.StatusFound, location: "/user-dashboard"},
		{name: "admin on admin area", path: "/admin-dashboard/orders", token: adminToken, code: http.StatusOK},
		{name: "user on own area", path: "/user-dashboard/", token: userToken, code: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tt.token})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
		})
	}
}

func TestRequireJSON(t *testing.T) {
	h := RequireJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("a=b"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit(t *testing.T) {
	rl := NewRateLimit(0.001, 2, logger.Discard())
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/token/login/", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRecovery(t *testing.T) {
	h := Recovery(logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}
