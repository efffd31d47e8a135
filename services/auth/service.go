package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/cognito"
	"github.com/maomaocong/audio-scene-api/middleware"
	"github.com/maomaocong/audio-scene-api/services"
)

// IdentityAPI is the user-pool capability surface the service consumes
type IdentityAPI interface {
	SignUp(ctx context.Context, email, password string) error
	ConfirmSignUp(ctx context.Context, email, code string) error
	InitiateAuth(ctx context.Context, email, password string) (*cognito.AuthResult, error)
	ResendConfirmationCode(ctx context.Context, email string) error
	GetUser(ctx context.Context, accessToken string) (*cognito.User, error)
	FindUserByEmail(ctx context.Context, email string) (*cognito.User, error)
	ListUsers(ctx context.Context) ([]cognito.User, error)
	AddUserToGroup(ctx context.Context, username, groupName string) error
	RemoveUserFromGroup(ctx context.Context, username, groupName string) error
	ListGroupsForUser(ctx context.Context, username string) ([]string, error)
	RegistrationEnabled(ctx context.Context) (bool, error)
	SetRegistrationEnabled(ctx context.Context, enabled bool) error
}

// GroupCache caches group memberships between pool lookups
type GroupCache interface {
	GetGroups(ctx context.Context, username string) ([]string, bool)
	SetGroups(ctx context.Context, username string, groups []string)
	Invalidate(ctx context.Context, username string)
}

// UserProfile is the caller-facing view of a pool user
type UserProfile struct {
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Groups   []string `json:"groups"`
	IsAdmin  bool     `json:"isAdmin"`
}

// UserSummary is one row of the admin user listing
type UserSummary struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Enabled  bool   `json:"enabled"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Service implements account and admin operations against the user pool
type Service struct {
	identity IdentityAPI
	cache    GroupCache
	logger   *zap.Logger
}

// NewService creates a new auth Service. cache may be nil.
func NewService(identity IdentityAPI, cache GroupCache, logger *zap.Logger) *Service {
	return &Service{
		identity: identity,
		cache:    cache,
		logger:   logger,
	}
}

// Register creates a new unconfirmed account. Registration is gated on
// the pool-level feature flag, checked at request time so flipping the
// flag needs no redeploy.
func (s *Service) Register(ctx context.Context, email, password string) error {
	enabled, err := s.identity.RegistrationEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		return services.ErrRegistrationClosed
	}

	if err := s.identity.SignUp(ctx, email, password); err != nil {
		return err
	}
	s.logger.Info("user registered", zap.String("email", email))
	return nil
}

// Login performs a password login and returns the issued tokens
func (s *Service) Login(ctx context.Context, email, password string) (*cognito.AuthResult, error) {
	result, err := s.identity.InitiateAuth(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", zap.String("email", email))
	return result, nil
}

// Confirm completes a registration with the emailed code
func (s *Service) Confirm(ctx context.Context, email, code string) error {
	return s.identity.ConfirmSignUp(ctx, email, code)
}

// ResendCode re-sends the registration confirmation code
func (s *Service) ResendCode(ctx context.Context, email string) error {
	return s.identity.ResendConfirmationCode(ctx, email)
}

// UserInfo resolves the caller's profile from their access token
func (s *Service) UserInfo(ctx context.Context, accessToken string) (*UserProfile, error) {
	user, err := s.identity.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	groups, err := s.groupsFor(ctx, user.Username)
	if err != nil {
		return nil, err
	}

	return &UserProfile{
		Username: user.Username,
		Email:    user.Email,
		Groups:   groups,
		IsAdmin:  containsGroup(groups, middleware.AdminGroupName),
	}, nil
}

// ListUsers returns every pool user with their admin standing
func (s *Service) ListUsers(ctx context.Context) ([]UserSummary, error) {
	users, err := s.identity.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]UserSummary, 0, len(users))
	for _, u := range users {
		groups, err := s.groupsFor(ctx, u.Username)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, UserSummary{
			Username: u.Username,
			Email:    u.Email,
			Enabled:  u.Enabled,
			IsAdmin:  containsGroup(groups, middleware.AdminGroupName),
		})
	}
	return summaries, nil
}

// SetAdmin grants admin standing to the user behind an email address
func (s *Service) SetAdmin(ctx context.Context, email string) error {
	user, err := s.identity.FindUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.identity.AddUserToGroup(ctx, user.Username, middleware.AdminGroupName); err != nil {
		return err
	}
	s.invalidate(ctx, user.Username)
	s.logger.Info("admin granted", zap.String("username", user.Username))
	return nil
}

// RemoveAdmin revokes admin standing from the user behind an email address
func (s *Service) RemoveAdmin(ctx context.Context, email string) error {
	user, err := s.identity.FindUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := s.identity.RemoveUserFromGroup(ctx, user.Username, middleware.AdminGroupName); err != nil {
		return err
	}
	s.invalidate(ctx, user.Username)
	s.logger.Info("admin revoked", zap.String("username", user.Username))
	return nil
}

// RegistrationSetting reads the self-registration flag
func (s *Service) RegistrationSetting(ctx context.Context) (bool, error) {
	return s.identity.RegistrationEnabled(ctx)
}

// SetRegistrationSetting writes the self-registration flag
func (s *Service) SetRegistrationSetting(ctx context.Context, enabled bool) error {
	if err := s.identity.SetRegistrationEnabled(ctx, enabled); err != nil {
		return err
	}
	s.logger.Info("registration setting updated", zap.Bool("enabled", enabled))
	return nil
}

func (s *Service) groupsFor(ctx context.Context, username string) ([]string, error) {
	if s.cache != nil {
		if groups, ok := s.cache.GetGroups(ctx, username); ok {
			return groups, nil
		}
	}

	groups, err := s.identity.ListGroupsForUser(ctx, username)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.SetGroups(ctx, username, groups)
	}
	return groups, nil
}

func (s *Service) invalidate(ctx context.Context, username string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, username)
	}
}

func containsGroup(groups []string, name string) bool {
	for _, g := range groups {
		if g == name {
			return true
		}
	}
	return false
}
