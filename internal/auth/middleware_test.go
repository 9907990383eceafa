package auth

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

// captureClaims returns a handler recording the claims it was called with
func captureClaims(got **Claims) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, _ = GetUserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func serve(a *Authenticator, next http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.Middleware(next).ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareSkipAuth(t *testing.T) {
	a := NewAuthenticator(Options{SkipAuth: true}, zerolog.New(&bytes.Buffer{}))
	require.NoError(t, a.Init())

	var claims *Claims
	rec := serve(a, captureClaims(&claims), httptest.NewRequest(http.MethodGet, "/api/charts", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestMiddlewareHealthBypass(t *testing.T) {
	a := NewAuthenticator(Options{}, zerolog.New(&bytes.Buffer{}))

	var claims *Claims
	rec := serve(a, captureClaims(&claims), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, claims)
}

func TestMiddlewareUnverifiedToken(t *testing.T) {
	a := NewAuthenticator(Options{}, zerolog.New(&bytes.Buffer{}))

	tests := []struct {
		name     string
		claims   jwt.MapClaims
		wantCode int
		wantRole string
	}{
		{
			name: "keycloak admin",
			claims: jwt.MapClaims{
				"email":        "lead@example.com",
				"realm_access": map[string]any{"roles": []any{"viewer", "admin"}},
				"exp":          float64(time.Now().Add(time.Hour).Unix()),
			},
			wantCode: http.StatusOK,
			wantRole: RoleAdmin,
		},
		{
			name:     "cognito supervisor",
			claims:   jwt.MapClaims{"cognito:groups": []any{"livechat-supervisors"}},
			wantCode: http.StatusOK,
			wantRole: RoleSupervisor,
		},
		{
			name:     "no roles",
			claims:   jwt.MapClaims{"preferred_username": "someone"},
			wantCode: http.StatusOK,
			wantRole: RoleViewer,
		},
		{
			name:     "expired",
			claims:   jwt.MapClaims{"exp": float64(time.Now().Add(-time.Hour).Unix())},
			wantCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/charts", nil)
			req.Header.Set("Authorization", "Bearer "+signHS(t, tt.claims))

			var claims *Claims
			rec := serve(a, captureClaims(&claims), req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				require.NotNil(t, claims)
				assert.Equal(t, tt.wantRole, claims.Role)
			}
		})
	}
}

func TestMiddlewareTokenFromQuery(t *testing.T) {
	a := NewAuthenticator(Options{}, zerolog.New(&bytes.Buffer{}))
	token := signHS(t, jwt.MapClaims{"email": "ws@example.com"})

	var claims *Claims
	rec := serve(a, captureClaims(&claims), httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "ws@example.com", claims.Email)
}

func TestMiddlewareMissingToken(t *testing.T) {
	a := NewAuthenticator(Options{}, zerolog.New(&bytes.Buffer{}))

	rec := serve(a, http.NotFoundHandler(), httptest.NewRequest(http.MethodGet, "/api/charts", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareVerifiedToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	a := NewAuthenticator(Options{
		VerifySignature: true,
		Keyfunc:         func(*jwt.Token) (any, error) { return &key.PublicKey, nil },
	}, zerolog.New(&bytes.Buffer{}))
	require.NoError(t, a.Init())

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"email": "verified@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString(key)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/charts", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	var claims *Claims
	rec := serve(a, captureClaims(&claims), req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "verified@example.com", claims.Email)

	// HMAC tokens are not accepted when verifying
	req = httptest.NewRequest(http.MethodGet, "/api/charts", nil)
	req.Header.Set("Authorization", "Bearer "+signHS(t, jwt.MapClaims{"email": "forged@example.com"}))
	rec = serve(a, captureClaims(&claims), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInitRequiresIssuer(t *testing.T) {
	a := NewAuthenticator(Options{VerifySignature: true}, zerolog.New(&bytes.Buffer{}))
	assert.Error(t, a.Init())

	_, err := a.validateToken("a.b.c")
	assert.ErrorIs(t, err, ErrNoKeys)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		claims *Claims
		want   int
	}{
		{"admin", &Claims{Role: RoleAdmin}, http.StatusNoContent},
		{"viewer", &Claims{Role: RoleViewer}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/charts/reset", nil)
			if tt.claims != nil {
				req = req.WithContext(WithUser(req.Context(), tt.claims))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestInGroup(t *testing.T) {
	claims := &Claims{Groups: []string{"developers", "support"}}
	assert.True(t, InGroup(claims, "support"))
	assert.False(t, InGroup(claims, "sales"))
	assert.False(t, InGroup(nil, "support"))
}
