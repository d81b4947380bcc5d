package auth

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wurlus/platform/internal/domain"
)

func newTestAdmin() *Admin {
	return NewAdmin("hunter2", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func appCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok, "expected *domain.AppError, got %T", err)
	return appErr.Code
}

func TestLogin_IssuesToken(t *testing.T) {
	a := newTestAdmin()

	token, err := a.Login("10.0.0.1", "hunter2")
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.True(t, a.Valid(token))
	assert.False(t, a.Valid("unknown"))
}

func TestLogin_WrongPassword(t *testing.T) {
	a := newTestAdmin()

	_, err := a.Login("10.0.0.1", "wrong")
	assert.Equal(t, "UNAUTHORIZED", appCode(t, err))
}

func TestLogin_ThrottlesPerRemoteHost(t *testing.T) {
	a := newTestAdmin()

	for i := 0; i < loginAttempts; i++ {
		_, err := a.Login("10.0.0.1", "wrong")
		assert.Equal(t, "UNAUTHORIZED", appCode(t, err))
	}

	// even the right password is rejected once the window is full
	_, err := a.Login("10.0.0.1", "hunter2")
	appErr, ok := err.(*domain.AppError)
	require.True(t, ok)
	assert.Equal(t, domain.CodeRateLimitExceeded, appErr.Code)
	assert.Equal(t, 429, appErr.Status)

	// another host is unaffected
	_, err = a.Login("10.0.0.2", "hunter2")
	assert.NoError(t, err)
}

func TestMiddleware_BearerToken(t *testing.T) {
	a := newTestAdmin()
	token, err := a.Login("10.0.0.1", "hunter2")
	require.NoError(t, err)

	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/pause", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/pause", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_BodyPasswordRestoresBody(t *testing.T) {
	a := newTestAdmin()

	var seen struct {
		AdminPassword string `json:"adminPassword"`
		Paused        bool   `json:"paused"`
	}
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/pause",
		strings.NewReader(`{"adminPassword":"hunter2","paused":true}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hunter2", seen.AdminPassword, "handler re-reads the body")
	assert.True(t, seen.Paused)
}
