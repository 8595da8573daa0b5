package climb_test

import (
	"errors"
	"fmt"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"

	climb "github.com/goliatone/go-climb"
)

func TestAuthErrorsShareCategory(t *testing.T) {
	for _, err := range []error{
		climb.ErrInvalidCredentials,
		climb.ErrMissingToken,
		climb.ErrInvalidToken,
		climb.ErrIdentityNotFound,
		climb.ErrStaleCredential,
	} {
		assert.True(t, climb.IsAuthError(err), err.Error())
	}

	assert.False(t, climb.IsAuthError(climb.ErrNotFound))
	assert.False(t, climb.IsAuthError(errors.New("plain")))
}

func TestHasTextCode(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", climb.ErrDuplicateIdentity)
	assert.True(t, climb.HasTextCode(wrapped, climb.TextCodeDuplicateIdentity))
	assert.False(t, climb.HasTextCode(wrapped, climb.TextCodeNotFound))
	assert.False(t, climb.HasTextCode(errors.New("plain"), climb.TextCodeNotFound))
}

func TestNewValidationError(t *testing.T) {
	err := climb.NewValidationError("bad input", map[string]string{"email": "is required"})

	assert.Equal(t, goerrors.CategoryValidation, err.Category)
	assert.Equal(t, goerrors.CodeBadRequest, err.Code)
	assert.Equal(t, climb.TextCodeValidation, err.TextCode)
	assert.Equal(t, "is required", err.Metadata["email"])
}

func TestStoreUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	err := climb.StoreUnavailable(cause, "failed to load")

	assert.Equal(t, climb.TextCodeStoreUnavailable, err.TextCode)
	assert.Equal(t, goerrors.CategoryInternal, err.Category)
	assert.Equal(t, "failed to load", err.Message)
}

func TestNewConfigurationError(t *testing.T) {
	err := climb.NewConfigurationError("missing secret")
	assert.Equal(t, climb.TextCodeConfiguration, err.TextCode)
	assert.Equal(t, "missing secret", err.Message)
}
