package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/cognito"
	"github.com/maomaocong/audio-scene-api/services"
)

// mockIdentity implements IdentityAPI with overridable funcs
type mockIdentity struct {
	registrationEnabled bool
	registrationErr     error
	signUpCalled        bool
	signUpErr           error
	authResult          *cognito.AuthResult
	authErr             error
	user                *cognito.User
	users               []cognito.User
	groups              map[string][]string
	groupsErr           error
	addedGroups         []string
	removedGroups       []string
	setRegistration     *bool
}

func (m *mockIdentity) SignUp(ctx context.Context, email, password string) error {
	m.signUpCalled = true
	return m.signUpErr
}

func (m *mockIdentity) ConfirmSignUp(ctx context.Context, email, code string) error { return nil }

func (m *mockIdentity) InitiateAuth(ctx context.Context, email, password string) (*cognito.AuthResult, error) {
	return m.authResult, m.authErr
}

func (m *mockIdentity) ResendConfirmationCode(ctx context.Context, email string) error { return nil }

func (m *mockIdentity) GetUser(ctx context.Context, accessToken string) (*cognito.User, error) {
	if m.user == nil {
		return nil, services.ErrUserNotFound
	}
	return m.user, nil
}

func (m *mockIdentity) FindUserByEmail(ctx context.Context, email string) (*cognito.User, error) {
	if m.user == nil {
		return nil, services.ErrUserNotFound
	}
	return m.user, nil
}

func (m *mockIdentity) ListUsers(ctx context.Context) ([]cognito.User, error) {
	return m.users, nil
}

func (m *mockIdentity) AddUserToGroup(ctx context.Context, username, groupName string) error {
	m.addedGroups = append(m.addedGroups, username+":"+groupName)
	return nil
}

func (m *mockIdentity) RemoveUserFromGroup(ctx context.Context, username, groupName string) error {
	m.removedGroups = append(m.removedGroups, username+":"+groupName)
	return nil
}

func (m *mockIdentity) ListGroupsForUser(ctx context.Context, username string) ([]string, error) {
	if m.groupsErr != nil {
		return nil, m.groupsErr
	}
	return m.groups[username], nil
}

func (m *mockIdentity) RegistrationEnabled(ctx context.Context) (bool, error) {
	return m.registrationEnabled, m.registrationErr
}

func (m *mockIdentity) SetRegistrationEnabled(ctx context.Context, enabled bool) error {
	m.setRegistration = &enabled
	return nil
}

type spyCache struct {
	groups      map[string][]string
	invalidated []string
}

func (c *spyCache) GetGroups(ctx context.Context, username string) ([]string, bool) {
	g, ok := c.groups[username]
	return g, ok
}

func (c *spyCache) SetGroups(ctx context.Context, username string, groups []string) {
	if c.groups == nil {
		c.groups = make(map[string][]string)
	}
	c.groups[username] = groups
}

func (c *spyCache) Invalidate(ctx context.Context, username string) {
	c.invalidated = append(c.invalidated, username)
	delete(c.groups, username)
}

func newTestService(identity *mockIdentity, cache GroupCache) *Service {
	return NewService(identity, cache, zap.NewNop())
}

func TestRegister(t *testing.T) {
	t.Run("open registration signs up", func(t *testing.T) {
		identity := &mockIdentity{registrationEnabled: true}
		svc := newTestService(identity, nil)

		require.NoError(t, svc.Register(context.Background(), "a@example.com", "password1"))
		assert.True(t, identity.signUpCalled)
	})

	t.Run("closed registration is rejected before sign up", func(t *testing.T) {
		identity := &mockIdentity{registrationEnabled: false}
		svc := newTestService(identity, nil)

		err := svc.Register(context.Background(), "a@example.com", "password1")
		assert.ErrorIs(t, err, services.ErrRegistrationClosed)
		assert.False(t, identity.signUpCalled)
	})

	t.Run("flag lookup failure propagates", func(t *testing.T) {
		identity := &mockIdentity{registrationErr: services.ErrIdentityUnavailable}
		svc := newTestService(identity, nil)

		err := svc.Register(context.Background(), "a@example.com", "password1")
		assert.True(t, services.IsUpstreamError(err))
		assert.False(t, identity.signUpCalled)
	})
}

func TestLogin(t *testing.T) {
	identity := &mockIdentity{authResult: &cognito.AuthResult{AccessToken: "at", RefreshToken: "rt"}}
	svc := newTestService(identity, nil)

	result, err := svc.Login(context.Background(), "a@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, "at", result.AccessToken)
	assert.Equal(t, "rt", result.RefreshToken)
}

func TestLogin_BadCredentials(t *testing.T) {
	identity := &mockIdentity{authErr: services.ErrInvalidCredentials}
	svc := newTestService(identity, nil)

	_, err := svc.Login(context.Background(), "a@example.com", "wrong")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestUserInfo(t *testing.T) {
	identity := &mockIdentity{
		user:   &cognito.User{Username: "carol", Email: "carol@example.com"},
		groups: map[string][]string{"carol": {"admin", "beta"}},
	}
	svc := newTestService(identity, nil)

	profile, err := svc.UserInfo(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "carol", profile.Username)
	assert.True(t, profile.IsAdmin)
	assert.Equal(t, []string{"admin", "beta"}, profile.Groups)
}

func TestUserInfo_UsesCache(t *testing.T) {
	identity := &mockIdentity{
		user:      &cognito.User{Username: "carol", Email: "carol@example.com"},
		groupsErr: errors.New("pool should not be queried"),
	}
	cache := &spyCache{groups: map[string][]string{"carol": {"beta"}}}
	svc := newTestService(identity, cache)

	profile, err := svc.UserInfo(context.Background(), "token")
	require.NoError(t, err)
	assert.False(t, profile.IsAdmin)
}

func TestListUsers(t *testing.T) {
	identity := &mockIdentity{
		users: []cognito.User{
			{Username: "carol", Email: "carol@example.com", Enabled: true},
			{Username: "dave", Email: "dave@example.com", Enabled: false},
		},
		groups: map[string][]string{"carol": {"admin"}},
	}
	svc := newTestService(identity, nil)

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.True(t, users[0].IsAdmin)
	assert.False(t, users[1].IsAdmin)
	assert.False(t, users[1].Enabled)
}

func TestSetAdmin(t *testing.T) {
	identity := &mockIdentity{user: &cognito.User{Username: "carol", Email: "carol@example.com"}}
	cache := &spyCache{groups: map[string][]string{"carol": {"beta"}}}
	svc := newTestService(identity, cache)

	require.NoError(t, svc.SetAdmin(context.Background(), "carol@example.com"))
	assert.Equal(t, []string{"carol:admin"}, identity.addedGroups)
	assert.Equal(t, []string{"carol"}, cache.invalidated, "stale memberships must be dropped")
}

func TestSetAdmin_UnknownEmail(t *testing.T) {
	svc := newTestService(&mockIdentity{}, nil)

	err := svc.SetAdmin(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, services.ErrUserNotFound)
}

func TestRemoveAdmin(t *testing.T) {
	identity := &mockIdentity{user: &cognito.User{Username: "carol", Email: "carol@example.com"}}
	cache := &spyCache{}
	svc := newTestService(identity, cache)

	require.NoError(t, svc.RemoveAdmin(context.Background(), "carol@example.com"))
	assert.Equal(t, []string{"carol:admin"}, identity.removedGroups)
	assert.Equal(t, []string{"carol"}, cache.invalidated)
}

func TestRegistrationSetting(t *testing.T) {
	identity := &mockIdentity{registrationEnabled: true}
	svc := newTestService(identity, nil)

	enabled, err := svc.RegistrationSetting(context.Background())
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, svc.SetRegistrationSetting(context.Background(), false))
	require.NotNil(t, identity.setRegistration)
	assert.False(t, *identity.setRegistration)
}
