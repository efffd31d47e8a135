package middleware

import (
	"context"

	"github.com/maomaocong/audio-scene-api/cognito"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// IdentityKey is the context key for the authenticated identity
	IdentityKey contextKey = "identity"
)

// Identity is the authenticated caller attached to the request context.
// The raw token is kept because group lookups against the user pool
// need the access token, not just its claims.
type Identity struct {
	Claims *cognito.Claims
	Token  string
}

// UserID returns the stable subject identifier of the caller
func (i *Identity) UserID() string {
	if i == nil || i.Claims == nil {
		return ""
	}
	return i.Claims.Sub
}

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetIdentityFromContext retrieves the authenticated identity from context
func GetIdentityFromContext(ctx context.Context) *Identity {
	if val := ctx.Value(IdentityKey); val != nil {
		if identity, ok := val.(*Identity); ok {
			return identity
		}
	}
	return nil
}

// WithIdentity adds an authenticated identity to the context
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}
