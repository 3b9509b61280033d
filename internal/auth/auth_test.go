package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testService(t *testing.T) *Service {
	t.Helper()
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)

	tokens := NewTokenService([]byte(testSecret), time.Hour)
	svc, err := NewService(Config{
		Operators: []Operator{{Username: "ops", PasswordHash: hash, Role: "admin"}},
	}, tokens, zaptest.NewLogger(t))
	require.NoError(t, err)
	return svc
}

func TestTokenRoundTrip(t *testing.T) {
	tokens := NewTokenService([]byte(testSecret), time.Hour)

	signed, err := tokens.Issue("ops", "admin")
	require.NoError(t, err)

	claims, err := tokens.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "netvoucher", claims.Issuer)
}

func TestTokenExpiry(t *testing.T) {
	tokens := NewTokenService([]byte(testSecret), -time.Minute)

	signed, err := tokens.Issue("ops", "admin")
	require.NoError(t, err)

	_, err = tokens.Validate(signed)
	require.Error(t, err)
}

func TestTokenWrongSecret(t *testing.T) {
	signed, err := NewTokenService([]byte(testSecret), time.Hour).Issue("ops", "admin")
	require.NoError(t, err)

	_, err = NewTokenService([]byte("another-secret-another-secret!!!"), time.Hour).Validate(signed)
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	svc := testService(t)

	token, err := svc.Login("ops", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = svc.Login("ops", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login("nobody", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNewServiceRejectsPlaintextPassword(t *testing.T) {
	tokens := NewTokenService([]byte(testSecret), time.Hour)
	_, err := NewService(Config{
		Operators: []Operator{{Username: "ops", PasswordHash: "hunter2"}},
	}, tokens, zaptest.NewLogger(t))
	require.Error(t, err)
}

func TestNewServiceNoOperators(t *testing.T) {
	tokens := NewTokenService([]byte(testSecret), time.Hour)
	_, err := NewService(Config{}, tokens, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestHandleLogin(t *testing.T) {
	svc := testService(t)
	h := NewHandler(svc, zaptest.NewLogger(t))
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(LoginRequest{Username: "ops", Password: "s3cret-pass"})
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp LoginResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, 3600, resp.ExpiresIn)
}

func TestHandleLoginBadCredentials(t *testing.T) {
	svc := testService(t)
	h := NewHandler(svc, zaptest.NewLogger(t))
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(LoginRequest{Username: "ops", Password: "nope"})
	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware(t *testing.T) {
	svc := testService(t)
	mw := Middleware(svc.Tokens())

	protected := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := OperatorFromContext(r.Context())
		require.NotNil(t, claims)
		w.WriteHeader(http.StatusOK)
	}))

	// No token on an API path.
	req := httptest.NewRequest("GET", "/api/v1/devices", http.NoBody)
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token.
	token, err := svc.Login("ops", "s3cret-pass")
	require.NoError(t, err)
	req = httptest.NewRequest("GET", "/api/v1/devices", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Operational endpoints bypass auth.
	req = httptest.NewRequest("GET", "/healthz", http.NoBody)
	w = httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	// Login path is public.
	req = httptest.NewRequest("POST", "/api/v1/auth/login", http.NoBody)
	w = httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
