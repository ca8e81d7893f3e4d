package middlewares

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/usersvc/internal/auth"
	"github.com/dropDatabas3/usersvc/internal/rate"
	"github.com/dropDatabas3/usersvc/internal/rbac"
)

type stubValidator struct {
	p   *auth.Principal
	err error
}

func (s stubValidator) Validate(context.Context, string) (*auth.Principal, error) { return s.p, s.err }

func decodeCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	s, _ := body["code"].(string)
	return s
}

func TestRequireAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, found := Caller(r)
		require.True(t, found)
		_, _ = io.WriteString(w, c.UserID+":"+string(c.Role))
	})
	p := &auth.Principal{UserID: "teacher01", ID: 4, Role: rbac.Teacher}

	tests := []struct {
		name   string
		header string
		v      stubValidator
		status int
		code   string
	}{
		{"missing", "", stubValidator{p: p}, http.StatusUnauthorized, "TOKEN_MISSING"},
		{"wrong scheme", "Basic abc", stubValidator{p: p}, http.StatusUnauthorized, "TOKEN_MISSING"},
		{"invalid", "Bearer x", stubValidator{err: auth.ErrTokenRevoked}, http.StatusUnauthorized, "TOKEN_INVALID"},
		{"backend down", "Bearer x", stubValidator{err: errors.New("redis: connection refused")}, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			RequireAuth(tt.v)(ok).ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, decodeCode(t, rr))
		})
	}

	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()
		RequireAuth(stubValidator{p: p})(ok).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "teacher01:teacher", rr.Body.String())
	})
}

func TestWithRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }), WithRecover())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", decodeCode(t, rr))
	assert.NotContains(t, rr.Body.String(), "boom")
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}), WithRequestID())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	h.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
}

func TestWithClientIP(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) { seen = GetClientIP(r.Context()) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	WithClientIP(false)(next).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "10.0.0.1", seen)

	WithClientIP(true)(next).ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "203.0.113.7", seen)
}

func TestLoginRateKey_KeepsBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"userid":"Student01","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.0.2.1:1234"

	key := LoginRateKey(req)
	assert.Equal(t, "login|192.0.2.1|student01", key)

	rest, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"userid":"Student01","password":"x"}`, string(rest))
}

func TestWithRateLimit(t *testing.T) {
	l := rate.NewMemoryLimiter(1, time.Minute)
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }),
		WithRateLimit(l, IPRateKey))

	req := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
		r.RemoteAddr = "192.0.2.9:1"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, r)
		return rr
	}
	assert.Equal(t, http.StatusNoContent, req().Code)
	rr := req()
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "RATE_LIMITED", decodeCode(t, rr))
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestWithNoStore(t *testing.T) {
	rr := httptest.NewRecorder()
	Chain(http.NotFoundHandler(), WithNoStore(), WithSecurityHeaders()).
		ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}
