package cognito

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"github.com/maomaocong/audio-scene-api/services"
)

// User is a user-pool entry as exposed to callers
type User struct {
	Username string
	Email    string
	Enabled  bool
}

// AuthResult carries the tokens returned by a successful login
type AuthResult struct {
	AccessToken  string
	RefreshToken string
}

// identityAPI is the subset of the Cognito Identity Provider API this client uses
type identityAPI interface {
	SignUp(ctx context.Context, in *cip.SignUpInput, opts ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, in *cip.ConfirmSignUpInput, opts ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, opts ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	ResendConfirmationCode(ctx context.Context, in *cip.ResendConfirmationCodeInput, opts ...func(*cip.Options)) (*cip.ResendConfirmationCodeOutput, error)
	GetUser(ctx context.Context, in *cip.GetUserInput, opts ...func(*cip.Options)) (*cip.GetUserOutput, error)
	ListUsers(ctx context.Context, in *cip.ListUsersInput, opts ...func(*cip.Options)) (*cip.ListUsersOutput, error)
	AdminAddUserToGroup(ctx context.Context, in *cip.AdminAddUserToGroupInput, opts ...func(*cip.Options)) (*cip.AdminAddUserToGroupOutput, error)
	AdminRemoveUserFromGroup(ctx context.Context, in *cip.AdminRemoveUserFromGroupInput, opts ...func(*cip.Options)) (*cip.AdminRemoveUserFromGroupOutput, error)
	AdminListGroupsForUser(ctx context.Context, in *cip.AdminListGroupsForUserInput, opts ...func(*cip.Options)) (*cip.AdminListGroupsForUserOutput, error)
	DescribeUserPool(ctx context.Context, in *cip.DescribeUserPoolInput, opts ...func(*cip.Options)) (*cip.DescribeUserPoolOutput, error)
	UpdateUserPool(ctx context.Context, in *cip.UpdateUserPoolInput, opts ...func(*cip.Options)) (*cip.UpdateUserPoolOutput, error)
}

// IdentityClient wraps the Cognito Identity Provider API behind the
// capability surface the auth service consumes. It owns the translation
// from Cognito exception types to domain errors.
type IdentityClient struct {
	api        identityAPI
	userPoolID string
	clientID   string
}

// NewIdentityClient creates an IdentityClient from AWS SDK configuration
func NewIdentityClient(awsCfg aws.Config, userPoolID, clientID string) *IdentityClient {
	return &IdentityClient{
		api:        cip.NewFromConfig(awsCfg),
		userPoolID: userPoolID,
		clientID:   clientID,
	}
}

// SignUp registers a new user with the pool
func (c *IdentityClient) SignUp(ctx context.Context, email, password string) error {
	_, err := c.api.SignUp(ctx, &cip.SignUpInput{
		ClientId: aws.String(c.clientID),
		Username: aws.String(email),
		Password: aws.String(password),
	})
	return translateError("sign up", err)
}

// ConfirmSignUp confirms a registration with the emailed code
func (c *IdentityClient) ConfirmSignUp(ctx context.Context, email, code string) error {
	_, err := c.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
	})
	return translateError("confirm sign up", err)
}

// InitiateAuth performs a password login and returns the issued tokens
func (c *IdentityClient) InitiateAuth(ctx context.Context, email, password string) (*AuthResult, error) {
	out, err := c.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(c.clientID),
		AuthParameters: map[string]string{
			"USERNAME": email,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, translateError("initiate auth", err)
	}
	if out.AuthenticationResult == nil || out.AuthenticationResult.AccessToken == nil {
		return nil, services.ErrIdentityUnavailable.Wrap(errors.New("no authentication result returned"))
	}
	return &AuthResult{
		AccessToken:  aws.ToString(out.AuthenticationResult.AccessToken),
		RefreshToken: aws.ToString(out.AuthenticationResult.RefreshToken),
	}, nil
}

// ResendConfirmationCode re-sends the registration confirmation code
func (c *IdentityClient) ResendConfirmationCode(ctx context.Context, email string) error {
	_, err := c.api.ResendConfirmationCode(ctx, &cip.ResendConfirmationCodeInput{
		ClientId: aws.String(c.clientID),
		Username: aws.String(email),
	})
	return translateError("resend confirmation code", err)
}

// GetUser resolves the user behind an access token
func (c *IdentityClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	out, err := c.api.GetUser(ctx, &cip.GetUserInput{
		AccessToken: aws.String(accessToken),
	})
	if err != nil {
		return nil, translateError("get user", err)
	}
	return &User{
		Username: aws.ToString(out.Username),
		Email:    attributeValue(out.UserAttributes, "email"),
		Enabled:  true,
	}, nil
}

// FindUserByEmail resolves a username from an email address via a filtered listing
func (c *IdentityClient) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	out, err := c.api.ListUsers(ctx, &cip.ListUsersInput{
		UserPoolId: aws.String(c.userPoolID),
		Filter:     aws.String(fmt.Sprintf("email = %q", email)),
	})
	if err != nil {
		return nil, translateError("list users", err)
	}
	if len(out.Users) == 0 {
		return nil, services.ErrUserNotFound
	}
	u := out.Users[0]
	return &User{
		Username: aws.ToString(u.Username),
		Email:    attributeValue(u.Attributes, "email"),
		Enabled:  u.Enabled,
	}, nil
}

// ListUsers returns every user in the pool
func (c *IdentityClient) ListUsers(ctx context.Context) ([]User, error) {
	out, err := c.api.ListUsers(ctx, &cip.ListUsersInput{
		UserPoolId: aws.String(c.userPoolID),
	})
	if err != nil {
		return nil, translateError("list users", err)
	}
	users := make([]User, 0, len(out.Users))
	for _, u := range out.Users {
		users = append(users, User{
			Username: aws.ToString(u.Username),
			Email:    attributeValue(u.Attributes, "email"),
			Enabled:  u.Enabled,
		})
	}
	return users, nil
}

// AddUserToGroup adds a username to a pool group
func (c *IdentityClient) AddUserToGroup(ctx context.Context, username, groupName string) error {
	_, err := c.api.AdminAddUserToGroup(ctx, &cip.AdminAddUserToGroupInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
		GroupName:  aws.String(groupName),
	})
	return translateError("add user to group", err)
}

// RemoveUserFromGroup removes a username from a pool group
func (c *IdentityClient) RemoveUserFromGroup(ctx context.Context, username, groupName string) error {
	_, err := c.api.AdminRemoveUserFromGroup(ctx, &cip.AdminRemoveUserFromGroupInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
		GroupName:  aws.String(groupName),
	})
	return translateError("remove user from group", err)
}

// ListGroupsForUser returns the group names a username belongs to
func (c *IdentityClient) ListGroupsForUser(ctx context.Context, username string) ([]string, error) {
	out, err := c.api.AdminListGroupsForUser(ctx, &cip.AdminListGroupsForUserInput{
		UserPoolId: aws.String(c.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return nil, translateError("list groups for user", err)
	}
	groups := make([]string, 0, len(out.Groups))
	for _, g := range out.Groups {
		groups = append(groups, aws.ToString(g.GroupName))
	}
	return groups, nil
}

// RegistrationEnabled reads the self-registration feature flag from the pool
func (c *IdentityClient) RegistrationEnabled(ctx context.Context) (bool, error) {
	out, err := c.api.DescribeUserPool(ctx, &cip.DescribeUserPoolInput{
		UserPoolId: aws.String(c.userPoolID),
	})
	if err != nil {
		return false, translateError("describe user pool", err)
	}
	if out.UserPool == nil || out.UserPool.AdminCreateUserConfig == nil {
		return true, nil
	}
	return !out.UserPool.AdminCreateUserConfig.AllowAdminCreateUserOnly, nil
}

// SetRegistrationEnabled writes the self-registration feature flag on the pool
func (c *IdentityClient) SetRegistrationEnabled(ctx context.Context, enabled bool) error {
	_, err := c.api.UpdateUserPool(ctx, &cip.UpdateUserPoolInput{
		UserPoolId: aws.String(c.userPoolID),
		AdminCreateUserConfig: &types.AdminCreateUserConfigType{
			AllowAdminCreateUserOnly: !enabled,
		},
	})
	return translateError("update user pool", err)
}

// attributeValue extracts a named attribute from a Cognito attribute list
func attributeValue(attrs []types.AttributeType, name string) string {
	for _, a := range attrs {
		if aws.ToString(a.Name) == name {
			return aws.ToString(a.Value)
		}
	}
	return ""
}

// translateError maps Cognito exception types onto the domain error taxonomy.
// Anything unrecognized is an upstream failure, not an auth outcome.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		notAuthorized   *types.NotAuthorizedException
		userNotFound    *types.UserNotFoundException
		userNotConfirmed *types.UserNotConfirmedException
		usernameExists  *types.UsernameExistsException
		codeMismatch    *types.CodeMismatchException
		expiredCode     *types.ExpiredCodeException
		invalidPassword *types.InvalidPasswordException
		invalidParam    *types.InvalidParameterException
	)

	switch {
	case errors.As(err, &notAuthorized), errors.As(err, &userNotConfirmed):
		return services.ErrInvalidCredentials.Wrap(err)
	case errors.As(err, &userNotFound):
		return services.ErrUserNotFound.Wrap(err)
	case errors.As(err, &usernameExists):
		return services.ErrUserExists.Wrap(err)
	case errors.As(err, &codeMismatch), errors.As(err, &expiredCode),
		errors.As(err, &invalidPassword), errors.As(err, &invalidParam):
		return services.ErrInvalidInput.Wrap(err)
	default:
		return services.ErrIdentityUnavailable.Wrap(fmt.Errorf("%s: %w", op, err))
	}
}
