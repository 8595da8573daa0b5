package climb

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation         = "VALIDATION_ERROR"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeMissingToken       = "MISSING_TOKEN"
	TextCodeInvalidToken       = "INVALID_TOKEN"
	TextCodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	TextCodeStaleCredential    = "STALE_CREDENTIAL"
	TextCodeNotFound           = "NOT_FOUND"
	TextCodeDuplicateIdentity  = "DUPLICATE_IDENTITY"
	TextCodeConfiguration      = "CONFIGURATION_ERROR"
	TextCodeStoreUnavailable   = "STORE_UNAVAILABLE"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeInvalidResetToken  = "INVALID_RESET_TOKEN"
)

// AuthFailureMessage is the only message a client receives for any
// authentication failure.
const AuthFailureMessage = "authentication required"

var (
	// ErrInvalidCredentials covers both unknown emails and wrong passwords
	ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized).
				WithTextCode(TextCodeInvalidCredentials)

	// ErrMissingToken no bearer token in the request
	ErrMissingToken = goerrors.New("missing or malformed bearer token", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithTextCode(TextCodeMissingToken)

	// ErrInvalidToken bad signature, malformed or expired token
	ErrInvalidToken = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized).
			WithTextCode(TextCodeInvalidToken)

	// ErrIdentityNotFound the token subject no longer exists
	ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized).
				WithTextCode(TextCodeIdentityNotFound)

	// ErrStaleCredential the token was issued before the last password change
	ErrStaleCredential = goerrors.New("credential changed after token was issued", goerrors.CategoryAuth).
				WithCode(goerrors.CodeUnauthorized).
				WithTextCode(TextCodeStaleCredential)

	// ErrNotFound is returned for missing records and for records owned by
	// someone else.
	ErrNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
			WithCode(goerrors.CodeNotFound).
			WithTextCode(TextCodeNotFound)

	// ErrDuplicateIdentity email already registered
	ErrDuplicateIdentity = goerrors.New("a user with this email already exists", goerrors.CategoryConflict).
				WithCode(goerrors.CodeConflict).
				WithTextCode(TextCodeDuplicateIdentity)

	// ErrNoEmptyString password must not be empty
	ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(TextCodeEmptyPassword)

	// ErrInvalidResetToken reset secret unknown, used or expired
	ErrInvalidResetToken = goerrors.New("password reset token is invalid or has expired", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest).
				WithTextCode(TextCodeInvalidResetToken)
)

// NewConfigurationError is raised at startup when required settings are missing
func NewConfigurationError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(goerrors.CodeInternal).
		WithTextCode(TextCodeConfiguration)
}

// NewValidationError builds a ValidationError listing the offending fields.
func NewValidationError(message string, fields map[string]string) *goerrors.Error {
	details := make(map[string]any, len(fields))
	for k, v := range fields {
		details[k] = v
	}
	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeValidation).
		WithMetadata(details)
}

// StoreUnavailable wraps a persistence failure. The wrapped error is kept for
// logs and never rendered to clients.
func StoreUnavailable(err error, message string) *goerrors.Error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message).
		WithCode(goerrors.CodeInternal).
		WithTextCode(TextCodeStoreUnavailable)
}

// HasTextCode reports whether err is a structured error with the given code
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsAuthError reports whether err belongs to the 401 family
func IsAuthError(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.Category == goerrors.CategoryAuth
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}

var errNilRecord = errors.New("record must not be nil")
