package middleware

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/cognito"
	"github.com/maomaocong/audio-scene-api/utils"
)

// AdminGroupName is the user-pool group that grants admin access
const AdminGroupName = "admin"

// GroupDirectory resolves a caller's group memberships from the user pool
type GroupDirectory interface {
	GetUser(ctx context.Context, accessToken string) (*cognito.User, error)
	ListGroupsForUser(ctx context.Context, username string) ([]string, error)
}

// GroupCache is an optional read-through cache for group memberships
type GroupCache interface {
	GetGroups(ctx context.Context, username string) ([]string, bool)
	SetGroups(ctx context.Context, username string, groups []string)
}

// AdminMiddleware gates routes on membership in the admin group
type AdminMiddleware struct {
	directory GroupDirectory
	cache     GroupCache
	logger    *zap.Logger
}

// NewAdminMiddleware creates a new AdminMiddleware. cache may be nil.
func NewAdminMiddleware(directory GroupDirectory, cache GroupCache, logger *zap.Logger) *AdminMiddleware {
	return &AdminMiddleware{
		directory: directory,
		cache:     cache,
		logger:    logger,
	}
}

// RequireAdmin rejects callers outside the admin group. Membership is
// resolved against the user pool, not the token, so a revocation takes
// effect without waiting for the token to expire. A failed lookup is an
// upstream error, not a denial.
func (m *AdminMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		identity := GetIdentityFromContext(ctx)
		if identity == nil {
			m.logger.Error("identity not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		groups, err := m.resolveGroups(ctx, identity)
		if err != nil {
			m.logger.Error("group lookup failed",
				zap.String("request_id", requestID),
				zap.String("sub", identity.UserID()),
				zap.Error(err))
			_ = utils.WriteBadGateway(w, "Unable to verify permissions")
			return
		}

		if !containsGroup(groups, AdminGroupName) {
			m.logger.Warn("admin access denied",
				zap.String("request_id", requestID),
				zap.String("sub", identity.UserID()),
				zap.Strings("groups", groups))
			_ = utils.WriteForbidden(w, "Admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *AdminMiddleware) resolveGroups(ctx context.Context, identity *Identity) ([]string, error) {
	user, err := m.directory.GetUser(ctx, identity.Token)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		if groups, ok := m.cache.GetGroups(ctx, user.Username); ok {
			return groups, nil
		}
	}

	groups, err := m.directory.ListGroupsForUser(ctx, user.Username)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		m.cache.SetGroups(ctx, user.Username, groups)
	}
	return groups, nil
}

func containsGroup(groups []string, name string) bool {
	for _, g := range groups {
		if g == name {
			return true
		}
	}
	return false
}
