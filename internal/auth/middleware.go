package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

// Roles in priority order
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleAgent      = "agent"
	RoleViewer     = "viewer"
)

var rolePriority = []string{RoleAdmin, RoleSupervisor, RoleAgent, RoleViewer}

var (
	ErrMissingToken = errors.New("missing token")
	ErrTokenExpired = errors.New("token expired")
	ErrNoKeys       = errors.New("JWKS not available")
)

type Claims struct {
	Email  string   `json:"email"`
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Groups []string `json:"groups"`
	jwt.RegisteredClaims
}

type contextKey string

const UserContextKey contextKey = "user"

// Options configures token validation
type Options struct {
	// SkipAuth lets every request through as a development admin
	SkipAuth bool

	// Issuer is the OIDC issuer whose JWKS verifies signatures
	Issuer string

	// VerifySignature enables signature verification; without it tokens are
	// only decoded and checked for expiry
	VerifySignature bool

	// Keyfunc overrides the JWKS lookup
	Keyfunc jwt.Keyfunc
}

// JWKSManager handles JWKS fetching and caching
type JWKSManager struct {
	jwks       keyfunc.Keyfunc
	issuerURL  string
	mu         sync.RWMutex
	lastUpdate time.Time
}

// refresh fetches the JWKS from the OIDC provider
func (m *JWKSManager) refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Keycloak layout
	jwksURL := strings.TrimSuffix(m.issuerURL, "/") + "/protocol/openid-connect/certs"

	k, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return fmt.Errorf("failed to create keyfunc: %w", err)
	}

	m.jwks = k
	m.lastUpdate = time.Now()
	return nil
}

// getKeyfunc returns the JWT keyfunc for token verification
func (m *JWKSManager) getKeyfunc() jwt.Keyfunc {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.jwks == nil {
		return nil
	}
	return m.jwks.Keyfunc
}

// Authenticator validates OIDC bearer tokens
type Authenticator struct {
	opts   Options
	jwks   *JWKSManager
	once   sync.Once
	logger zerolog.Logger
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(opts Options, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		opts:   opts,
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// Init fetches the JWKS when signatures are verified. Call on server startup.
func (a *Authenticator) Init() error {
	if a.opts.SkipAuth {
		a.logger.Warn().Msg("SKIP_AUTH enabled - bypassing authentication")
		return nil
	}
	if !a.opts.VerifySignature {
		a.logger.Warn().Msg("JWT signature verification disabled")
		return nil
	}
	if a.opts.Keyfunc != nil {
		return nil
	}
	if a.opts.Issuer == "" {
		return errors.New("OIDC_ISSUER not configured for JWT verification")
	}

	var err error
	a.once.Do(func() {
		a.jwks = &JWKSManager{issuerURL: a.opts.Issuer}
		err = a.jwks.refresh()
	})
	if err != nil {
		return fmt.Errorf("failed to initialize JWKS: %w", err)
	}
	a.logger.Info().Str("issuer", a.opts.Issuer).Msg("JWKS loaded")
	return nil
}

// Middleware validates JWT tokens from the OIDC provider
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if a.opts.SkipAuth {
			ctx := WithUser(r.Context(), &Claims{
				Email:  "dev@livechat.local",
				Name:   "Dev User",
				Role:   RoleAdmin,
				Groups: []string{"developers"},
			})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		tokenString := extractToken(r)
		if tokenString == "" {
			a.logger.Debug().Str("path", r.URL.Path).Msg("missing authorization token")
			writeError(w, http.StatusUnauthorized, "Unauthorized: "+ErrMissingToken.Error())
			return
		}

		claims, err := a.validateToken(tokenString)
		if err != nil {
			a.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("token validation failed")
			writeError(w, http.StatusUnauthorized, "Unauthorized: "+err.Error())
			return
		}

		a.logger.Debug().
			Str("email", claims.Email).
			Str("role", claims.Role).
			Msg("user authenticated")

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
	})
}

// RequireRole rejects requests whose user does not have role
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetUserFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !HasRole(claims, role) {
				writeError(w, http.StatusForbidden, "Forbidden: "+role+" role required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// extractToken gets the token from Authorization header or query parameter
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString != authHeader {
			return tokenString
		}
	}

	// WebSocket connections cannot set headers
	return r.URL.Query().Get("token")
}

// validateToken decodes the token, verifying its signature when configured
func (a *Authenticator) validateToken(tokenString string) (*Claims, error) {
	var token *jwt.Token
	var err error

	if a.opts.VerifySignature {
		token, err = a.parseAndVerifyToken(tokenString)
		if err != nil {
			return nil, err
		}
	} else {
		token, _, err = new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
		if err != nil {
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	claims := &Claims{}

	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}

	if name, ok := mapClaims["name"].(string); ok {
		claims.Name = name
	} else if preferredUsername, ok := mapClaims["preferred_username"].(string); ok {
		claims.Name = preferredUsername
	}

	claims.Role = extractRoleFromMapClaims(mapClaims)
	claims.Groups = extractGroupsFromMapClaims(mapClaims)

	if sub, ok := mapClaims["sub"].(string); ok {
		claims.Subject = sub
	}

	// verified tokens had their expiry checked by the parser
	if !a.opts.VerifySignature {
		if exp, ok := mapClaims["exp"].(float64); ok {
			expTime := time.Unix(int64(exp), 0)
			claims.ExpiresAt = jwt.NewNumericDate(expTime)
			if expTime.Before(time.Now()) {
				return nil, ErrTokenExpired
			}
		}
	}

	return claims, nil
}

// parseAndVerifyToken verifies the JWT signature using JWKS
func (a *Authenticator) parseAndVerifyToken(tokenString string) (*jwt.Token, error) {
	kf := a.opts.Keyfunc
	if kf == nil && a.jwks != nil {
		kf = a.jwks.getKeyfunc()
	}
	if kf == nil {
		return nil, ErrNoKeys
	}

	token, err := jwt.Parse(tokenString, kf, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}))
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return token, nil
}

// extractRoleFromMapClaims extracts role from various possible token claim locations
func extractRoleFromMapClaims(mapClaims jwt.MapClaims) string {
	// Keycloak realm roles
	if realmAccess, ok := mapClaims["realm_access"].(map[string]interface{}); ok {
		if roles, ok := realmAccess["roles"].([]interface{}); ok {
			for _, priority := range rolePriority {
				for _, role := range roles {
					if roleStr, ok := role.(string); ok && roleStr == priority {
						return roleStr
					}
				}
			}
		}
	}

	for _, claim := range []string{"cognito:groups", "custom:groups"} {
		groups, ok := mapClaims[claim].([]interface{})
		if !ok {
			continue
		}
		for _, group := range groups {
			groupStr, ok := group.(string)
			if !ok {
				continue
			}
			for _, role := range rolePriority[:3] {
				if strings.Contains(groupStr, role) {
					return role
				}
			}
		}
	}

	return RoleViewer
}

// extractGroupsFromMapClaims extracts groups from token claims
func extractGroupsFromMapClaims(mapClaims jwt.MapClaims) []string {
	var groups []string

	for _, claim := range []string{"groups", "cognito:groups"} {
		if values, ok := mapClaims[claim].([]interface{}); ok {
			for _, group := range values {
				if groupStr, ok := group.(string); ok {
					groups = append(groups, groupStr)
				}
			}
		}
	}

	return groups
}

// GetUserFromContext retrieves user claims from request context
func GetUserFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserContextKey).(*Claims)
	return claims, ok
}

// WithUser returns a copy of ctx carrying claims
func WithUser(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// HasRole checks if user has specific role
func HasRole(claims *Claims, role string) bool {
	return claims != nil && claims.Role == role
}

// InGroup checks if user is in specific group
func InGroup(claims *Claims, group string) bool {
	return claims != nil && slices.Contains(claims.Groups, group)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
