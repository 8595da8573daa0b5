package climb

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ChangeUserPasswordSQL = `UPDATE "users"
SET
	"password_hash" = ?,
	"password_changed_at" = ?,
	"password_reset_token" = NULL,
	"password_reset_expires" = NULL,
	"updated_at" = ?
WHERE
	"id" = ?
RETURNING *;`

// Users persists user records. Lookups by email are case insensitive.
type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByUUID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByResetTokenTx(ctx context.Context, tx bun.IDB, tokenHash string) (*User, error)

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	UpdateProfile(ctx context.Context, user *User) (*User, error)

	ChangePassword(ctx context.Context, id uuid.UUID, passwordHash string, changedAt time.Time) error
	ChangePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string, changedAt time.Time) error
	SetResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, tokenHash string, expires time.Time) error
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// UsersOption configures the users repository
type UsersOption func(*users)

// WithUsersClock overrides the time source used for timestamps
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *users) {
		if now != nil {
			u.now = now
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

// RegisterTx inserts a new user. A unique violation on email is reported as
// ErrDuplicateIdentity so concurrent registrations never leak a raw
// constraint error.
func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil {
		return nil, errNilRecord
	}

	prepareUserDefaults(user, a.now())

	if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}

	return user, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"email": email})
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", normalized).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": normalized})
		}
		return nil, err
	}

	return record, nil
}

func (a *users) GetByUUID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.Repository.GetByID(ctx, id.String())
}

func (a *users) GetByResetTokenTx(ctx context.Context, tx bun.IDB, tokenHash string) (*User, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.password_reset_token = ?", tokenHash).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

// UpdateProfile writes the editable profile fields only
func (a *users) UpdateProfile(ctx context.Context, user *User) (*User, error) {
	if user == nil {
		return nil, errNilRecord
	}

	user.Name = strings.TrimSpace(user.Name)
	user.UpdatedAt = a.now()

	res, err := a.db.NewUpdate().
		Model(user).
		Column("name", "date_of_birth", "climbing_level", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": user.ID.String()})
	}

	return a.Repository.GetByID(ctx, user.ID.String())
}

func (a *users) ChangePassword(ctx context.Context, id uuid.UUID, passwordHash string, changedAt time.Time) error {
	return a.ChangePasswordTx(ctx, a.db, id, passwordHash, changedAt)
}

func (a *users) ChangePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string, changedAt time.Time) error {
	res, err := a.Repository.RawTx(ctx, tx, ChangeUserPasswordSQL, passwordHash, changedAt, a.now(), id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) SetResetTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, tokenHash string, expires time.Time) error {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_reset_token = ?", tokenHash).
		Set("password_reset_expires = ?", expires).
		Set("updated_at = ?", a.now()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}
