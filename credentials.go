package climb

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// DefaultPasswordSkew is subtracted from password_changed_at so a token
// issued in the same second as the change is still accepted.
const DefaultPasswordSkew = time.Second

// dummyHash is compared against when the email is unknown so both failure
// paths pay for one bcrypt comparison.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z5vR4lJHbH0bYVJ0fV2XQ2W6"

// CredentialStore owns user creation and password verification
type CredentialStore struct {
	users     Users
	cost      int
	skew      time.Duration
	useHashid bool
	now       func() time.Time
	logger    Logger
}

// CredentialOption configures a CredentialStore
type CredentialOption func(*CredentialStore)

// WithPasswordCost sets the bcrypt work factor
func WithPasswordCost(cost int) CredentialOption {
	return func(s *CredentialStore) {
		if cost > 0 {
			s.cost = cost
		}
	}
}

// WithPasswordSkew sets how far password_changed_at is moved into the past
func WithPasswordSkew(skew time.Duration) CredentialOption {
	return func(s *CredentialStore) {
		if skew >= 0 {
			s.skew = skew
		}
	}
}

// WithHashidUserIDs derives user ids from the email instead of random UUIDs
func WithHashidUserIDs(enabled bool) CredentialOption {
	return func(s *CredentialStore) {
		s.useHashid = enabled
	}
}

// WithCredentialClock overrides the time source
func WithCredentialClock(now func() time.Time) CredentialOption {
	return func(s *CredentialStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCredentialLogger sets the logger
func WithCredentialLogger(logger Logger) CredentialOption {
	return func(s *CredentialStore) {
		s.logger = normalizeLogger(logger)
	}
}

// NewCredentialStore creates a credential store backed by the users repository
func NewCredentialStore(users Users, opts ...CredentialOption) *CredentialStore {
	s := &CredentialStore{
		users:  users,
		cost:   passwordHashCost(),
		skew:   DefaultPasswordSkew,
		now:    time.Now,
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Users exposes the underlying repository
func (s *CredentialStore) Users() Users {
	return s.users
}

// CreateUser registers a new user. The email is checked up front and the
// unique constraint catches the race between two concurrent registrations.
func (s *CredentialStore) CreateUser(ctx context.Context, profile *User, password string) (*User, error) {
	return s.createUser(ctx, nil, profile, password)
}

// CreateUserTx is CreateUser inside an existing transaction
func (s *CredentialStore) CreateUserTx(ctx context.Context, tx bun.IDB, profile *User, password string) (*User, error) {
	return s.createUser(ctx, tx, profile, password)
}

func (s *CredentialStore) createUser(ctx context.Context, tx bun.IDB, profile *User, password string) (*User, error) {
	if profile == nil {
		return nil, errNilRecord
	}

	profile.Email = NormalizeEmail(profile.Email)

	var err error
	if tx != nil {
		_, err = s.users.GetByEmailTx(ctx, tx, profile.Email)
	} else {
		_, err = s.users.GetByEmail(ctx, profile.Email)
	}
	if err == nil {
		return nil, ErrDuplicateIdentity
	}
	if !repository.IsRecordNotFound(err) {
		return nil, StoreUnavailable(err, "failed to check for existing user")
	}

	hash, err := HashPasswordWithCost(password, s.cost)
	if err != nil {
		return nil, err
	}

	changedAt := s.now().Add(-s.skew)
	profile.PasswordHash = hash
	profile.PasswordChangedAt = &changedAt

	if s.useHashid {
		if id, err := hashid.NewUUID(profile.Email); err == nil {
			profile.ID = id
		} else {
			s.logger.Warn("hashid user id generation failed, using random id", "error", err)
		}
	}

	var user *User
	if tx != nil {
		user, err = s.users.RegisterTx(ctx, tx, profile)
	} else {
		user, err = s.users.Register(ctx, profile)
	}
	if err != nil {
		if HasTextCode(err, TextCodeDuplicateIdentity) {
			return nil, ErrDuplicateIdentity
		}
		return nil, StoreUnavailable(err, "failed to create user")
	}

	return user, nil
}

// VerifyPassword compares a plain password against the stored hash
func (s *CredentialStore) VerifyPassword(user *User, password string) bool {
	if user == nil || password == "" {
		return false
	}
	return ComparePasswordAndHash(password, user.PasswordHash) == nil
}

// Authenticate resolves the user for an email and password. Unknown email
// and wrong password both yield ErrInvalidCredentials.
func (s *CredentialStore) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			_ = ComparePasswordAndHash(password, dummyHash)
			return nil, ErrInvalidCredentials
		}
		return nil, StoreUnavailable(err, "failed to load user")
	}

	if !s.VerifyPassword(user, password) {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// ChangePassword rehashes the password, moves password_changed_at forward
// and clears any pending reset token. Tokens issued before the change stop
// working.
func (s *CredentialStore) ChangePassword(ctx context.Context, user *User, password string) error {
	return s.changePassword(ctx, nil, user, password)
}

// ChangePasswordTx is ChangePassword inside an existing transaction
func (s *CredentialStore) ChangePasswordTx(ctx context.Context, tx bun.IDB, user *User, password string) error {
	return s.changePassword(ctx, tx, user, password)
}

func (s *CredentialStore) changePassword(ctx context.Context, tx bun.IDB, user *User, password string) error {
	if user == nil {
		return errNilRecord
	}

	hash, err := HashPasswordWithCost(password, s.cost)
	if err != nil {
		return err
	}

	changedAt := s.now().Add(-s.skew)
	if tx != nil {
		err = s.users.ChangePasswordTx(ctx, tx, user.ID, hash, changedAt)
	} else {
		err = s.users.ChangePassword(ctx, user.ID, hash, changedAt)
	}
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrNotFound
		}
		return StoreUnavailable(err, "failed to change password")
	}

	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil

	return nil
}

// CheckIdentity confirms that the token subject exists and that the token
// was issued after the last password change.
func (s *CredentialStore) CheckIdentity(ctx context.Context, claims *Claims) (*User, error) {
	if claims == nil {
		return nil, ErrInvalidToken
	}

	id, err := claims.UserUUID()
	if err != nil {
		return nil, goerrors.Wrap(err, ErrInvalidToken.Category, ErrInvalidToken.Message).
			WithCode(ErrInvalidToken.Code).
			WithTextCode(ErrInvalidToken.TextCode)
	}

	user, err := s.users.GetByUUID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, StoreUnavailable(err, "failed to load token identity")
	}

	if user.ChangedPasswordAfter(claims.IssuedAt()) {
		return nil, ErrStaleCredential
	}

	return user, nil
}
