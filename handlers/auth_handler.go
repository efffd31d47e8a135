package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/maomaocong/audio-scene-api/cognito"
	"github.com/maomaocong/audio-scene-api/middleware"
	"github.com/maomaocong/audio-scene-api/services/auth"
	"github.com/maomaocong/audio-scene-api/utils"
)

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ConfirmRequest carries the emailed confirmation code
type ConfirmRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required"`
}

// ResendCodeRequest asks for a fresh confirmation code
type ResendCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AdminGrantRequest names a user by email for an admin grant or revoke
type AdminGrantRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// RegistrationSettingRequest toggles self-registration
type RegistrationSettingRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// LoginResponse carries the issued tokens
type LoginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// AuthService defines the account operations the handler needs
type AuthService interface {
	Register(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password string) (*cognito.AuthResult, error)
	Confirm(ctx context.Context, email, code string) error
	ResendCode(ctx context.Context, email string) error
	UserInfo(ctx context.Context, accessToken string) (*auth.UserProfile, error)
	ListUsers(ctx context.Context) ([]auth.UserSummary, error)
	SetAdmin(ctx context.Context, email string) error
	RemoveAdmin(ctx context.Context, email string) error
	RegistrationSetting(ctx context.Context) (bool, error)
	SetRegistrationSetting(ctx context.Context, enabled bool) error
}

// AuthHandler handles account and admin HTTP requests
type AuthHandler struct {
	service       AuthService
	secureCookies bool
	logger        *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService, secureCookies bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service:       service,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

const accessTokenCookieName = "accessToken"
const accessTokenCookieMaxAge = 3600

// HandleRegister handles POST /auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.Register(r.Context(), req.Email, req.Password); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteSuccess(w, http.StatusCreated, nil, "Registration started, check your email for a confirmation code")
}

// HandleLogin handles POST /auth/login. The access token is returned
// in the body and also set as a cookie for browser clients.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookieName,
		Value:    result.AccessToken,
		Path:     "/",
		MaxAge:   accessTokenCookieMaxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	_ = utils.WriteOK(w, LoginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

// HandleConfirm handles POST /auth/confirm
func (h *AuthHandler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.Confirm(r.Context(), req.Email, req.Code); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteSuccess(w, http.StatusOK, nil, "Account confirmed")
}

// HandleResendCode handles POST /auth/resend-code
func (h *AuthHandler) HandleResendCode(w http.ResponseWriter, r *http.Request) {
	var req ResendCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.ResendCode(r.Context(), req.Email); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteSuccess(w, http.StatusOK, nil, "Confirmation code sent")
}

// HandleLogout handles POST /auth/logout by expiring the cookie
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessTokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	_ = utils.WriteSuccess(w, http.StatusOK, nil, "Logged out")
}

// HandleMe handles GET /auth/user-info
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.callerProfile(w, r)
	if !ok {
		return
	}
	_ = utils.WriteOK(w, profile)
}

// HandleUserGroups handles GET /auth/user-groups
func (h *AuthHandler) HandleUserGroups(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.callerProfile(w, r)
	if !ok {
		return
	}
	_ = utils.WriteOK(w, map[string][]string{"groups": profile.Groups})
}

// HandleIsAdmin handles GET /auth/is-admin
func (h *AuthHandler) HandleIsAdmin(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.callerProfile(w, r)
	if !ok {
		return
	}
	_ = utils.WriteOK(w, map[string]bool{"isAdmin": profile.IsAdmin})
}

// callerProfile resolves the calling user's profile from the attached
// token. A false return means the response is already written.
func (h *AuthHandler) callerProfile(w http.ResponseWriter, r *http.Request) (*auth.UserProfile, bool) {
	identity := middleware.GetIdentityFromContext(r.Context())
	if identity == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return nil, false
	}

	profile, err := h.service.UserInfo(r.Context(), identity.Token)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return nil, false
	}
	return profile, true
}

// HandleListUsers handles GET /auth/users (admin)
func (h *AuthHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, users)
}

// HandleSetAdmin handles POST /auth/set-admin (admin)
func (h *AuthHandler) HandleSetAdmin(w http.ResponseWriter, r *http.Request) {
	var req AdminGrantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.SetAdmin(r.Context(), req.Email); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteSuccess(w, http.StatusOK, nil, "Admin access granted")
}

// HandleRemoveAdmin handles POST /auth/remove-admin (admin)
func (h *AuthHandler) HandleRemoveAdmin(w http.ResponseWriter, r *http.Request) {
	var req AdminGrantRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.RemoveAdmin(r.Context(), req.Email); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteSuccess(w, http.StatusOK, nil, "Admin access revoked")
}

// HandleGetRegistrationSetting handles GET /auth/registration-setting (admin)
func (h *AuthHandler) HandleGetRegistrationSetting(w http.ResponseWriter, r *http.Request) {
	enabled, err := h.service.RegistrationSetting(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, map[string]bool{"enabled": enabled})
}

// HandleSetRegistrationSetting handles POST /auth/registration-setting (admin)
func (h *AuthHandler) HandleSetRegistrationSetting(w http.ResponseWriter, r *http.Request) {
	var req RegistrationSettingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.service.SetRegistrationSetting(r.Context(), *req.Enabled); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, map[string]bool{"enabled": *req.Enabled})
}
