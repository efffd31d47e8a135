package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := ErrStoreUnavailable.Wrap(cause)

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, IsUpstreamError(err))
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDomainErrorWrappedByFmt(t *testing.T) {
	err := fmt.Errorf("delete scene: %w", ErrSceneNotFound)

	assert.True(t, IsNotFoundError(err))
	assert.True(t, errors.Is(err, ErrSceneNotFound))
	assert.Equal(t, ErrorTypeNotFound, GetErrorType(err))
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	err := ErrSceneNotFound.WithDetail("reason", "owner_mismatch")

	assert.Nil(t, ErrSceneNotFound.Details)
	assert.Equal(t, "owner_mismatch", err.Details["reason"])
	// The detailed copy still matches the sentinel
	assert.True(t, errors.Is(err, ErrSceneNotFound))
}

func TestTypeCheckers(t *testing.T) {
	tests := []struct {
		err   error
		check func(error) bool
	}{
		{ErrUnauthorized, IsUnauthorizedError},
		{ErrAdminRequired, IsForbiddenError},
		{ErrEmptyPrompt, IsValidationError},
		{ErrUserExists, IsConflictError},
		{ErrIdentityUnavailable, IsUpstreamError},
		{ErrInternal, IsInternalError},
	}

	for _, tt := range tests {
		assert.True(t, tt.check(tt.err), "%v", tt.err)
	}

	// Unknown errors fall back to internal
	assert.Equal(t, ErrorTypeInternal, GetErrorType(errors.New("plain")))
	assert.False(t, IsNotFoundError(errors.New("plain")))
}
