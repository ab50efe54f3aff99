package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestOpsAuth(t *testing.T) {
	const secret = "test-secret"
	var reached bool
	handler := OpsAuth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header", func(t *testing.T) {
		reached = false
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/internal/reconcile", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, reached)
	})

	t.Run("malformed header", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodPost, "/internal/reconcile", nil)
		req.Header.Set("Authorization", "Basic abc123")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, reached)
	})

	t.Run("wrong secret", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodPost, "/internal/reconcile", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret"))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.False(t, reached)
	})

	t.Run("valid token", func(t *testing.T) {
		reached = false
		req := httptest.NewRequest(http.MethodPost, "/internal/reconcile", nil)
		req.Header.Set("Authorization", "Bearer "+signToken(t, secret))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, reached)
	})
}
