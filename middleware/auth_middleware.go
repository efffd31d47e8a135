package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/cognito"
	"github.com/maomaocong/audio-scene-api/utils"
)

// TokenValidator defines the interface for validating access tokens
type TokenValidator interface {
	// ValidateToken validates an access token and returns its claims
	ValidateToken(ctx context.Context, token string) (*cognito.Claims, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	whitelist *Whitelist
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, whitelist *Whitelist, logger *zap.Logger) *AuthMiddleware {
	if whitelist == nil {
		whitelist = NewWhitelist(DefaultPublicPaths...)
	}
	return &AuthMiddleware{
		validator: validator,
		whitelist: whitelist,
		logger:    logger,
	}
}

// accessTokenCookieName is the cookie set by the login handler.
// The cookie takes precedence over the Authorization header.
const accessTokenCookieName = "accessToken"

// RequestID assigns each request a UUID and attaches it to the context
func (m *AuthMiddleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		w.Header().Set("X-Request-Id", requestID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}

// Authenticate verifies the caller's token on every non-public route
// and attaches the resulting identity to the request context. Public
// routes pass through untouched even when they carry a bad token.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.whitelist.Contains(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractToken(r)
		if token == "" {
			m.logger.Warn("missing token",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, "Missing or invalid authorization")
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		ctx = WithIdentity(ctx, &Identity{Claims: claims, Token: token})

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", claims.Sub))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken looks for the access token in the accessToken cookie
// first, then in the Authorization header as "Bearer TOKEN".
func extractToken(r *http.Request) string {
	if token := extractCookieToken(r, accessTokenCookieName); token != "" {
		return token
	}
	return extractBearerToken(r)
}

// extractCookieToken parses the raw Cookie header rather than using
// r.Cookie, so a single malformed pair elsewhere in the header does
// not hide the token.
func extractCookieToken(r *http.Request, name string) string {
	for _, header := range r.Header.Values("Cookie") {
		for _, pair := range strings.Split(header, ";") {
			pair = strings.TrimSpace(pair)
			key, value, found := strings.Cut(pair, "=")
			if !found {
				continue
			}
			if key == name {
				return strings.Trim(value, `"`)
			}
		}
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
