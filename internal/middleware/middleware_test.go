package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/landtitle/titling-backend/internal/middleware"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

// call runs one request through mw, letting setup adjust it first.
func call(t *testing.T, mw func(http.Handler) http.Handler, method string, setup func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, "/test", nil)
	if setup != nil {
		setup(req)
	}
	rec := httptest.NewRecorder()
	mw(okHandler).ServeHTTP(rec, req)
	return rec
}

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	mw := middleware.CORSMiddleware([]string{"https://cadastre.example.cm"})

	rec := call(t, mw, http.MethodGet, func(r *http.Request) {
		r.Header.Set("Origin", "https://cadastre.example.cm")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cadastre.example.cm", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = call(t, mw, http.MethodGet, func(r *http.Request) {
		r.Header.Set("Origin", "https://evil.example")
	})
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	mw := middleware.CORSMiddleware(nil)

	rec := call(t, mw, http.MethodOptions, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminTokenMiddleware(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	mw := middleware.AdminTokenMiddleware(string(hash))

	rec := call(t, mw, http.MethodPost, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, mw, http.MethodPost, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer wrong")
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = call(t, mw, http.MethodPost, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer s3cret")
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminTokenMiddleware_Disabled(t *testing.T) {
	mw := middleware.AdminTokenMiddleware("")

	rec := call(t, mw, http.MethodPost, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer anything")
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRateLimiter(t *testing.T) {
	rl := middleware.NewRateLimiter(0.001, 2)

	fromClient := func(addr string) func(*http.Request) {
		return func(r *http.Request) { r.RemoteAddr = addr }
	}

	for i := 0; i < 2; i++ {
		rec := call(t, rl.Middleware, http.MethodGet, fromClient("10.0.0.1:5000"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := call(t, rl.Middleware, http.MethodGet, fromClient("10.0.0.1:5001"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other clients have their own bucket.
	rec = call(t, rl.Middleware, http.MethodGet, fromClient("10.0.0.2:5000"))
	assert.Equal(t, http.StatusOK, rec.Code)
}
