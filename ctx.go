package climb

import (
	"context"
	"time"

	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// PrincipalLocalsKey is the router locals key the auth gate stores the
// principal under.
const PrincipalLocalsKey = "principal"

var principalCtxKey = &contextKey{"principal"}
var userCtxKey = &contextKey{"user"}

type contextKey struct {
	name string
}

type principal struct {
	userID   string
	token    string
	issuedAt time.Time
}

// NewPrincipal builds the identity attached to an authorized request
func NewPrincipal(userID, token string, issuedAt time.Time) Principal {
	return &principal{userID: userID, token: token, issuedAt: issuedAt}
}

func (p *principal) UserID() string               { return p.userID }
func (p *principal) UserUUID() (uuid.UUID, error) { return uuid.Parse(p.userID) }
func (p *principal) Token() string                { return p.token }
func (p *principal) IssuedAt() time.Time          { return p.issuedAt }

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext finds the principal in the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(Principal)
	return raw, ok && raw != nil
}

// WithUserContext sets the User in the given context
func WithUserContext(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// UserFromContext finds the user from the context.
func UserFromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// GetPrincipal extracts the principal from the router locals, falling back
// to the request context.
func GetPrincipal(ctx router.Context) (Principal, bool) {
	if raw, ok := ctx.Locals(PrincipalLocalsKey).(Principal); ok && raw != nil {
		return raw, true
	}
	return PrincipalFromContext(ctx.Context())
}

// OwnerID returns the owner id of the authorized request. It fails with
// ErrMissingToken when the handler is reached without a principal.
func OwnerID(ctx router.Context) (uuid.UUID, error) {
	p, ok := GetPrincipal(ctx)
	if !ok {
		return uuid.Nil, ErrMissingToken
	}
	id, err := p.UserUUID()
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}
