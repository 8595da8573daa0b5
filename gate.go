package climb

import (
	"context"
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-climb/middleware/jwtware"
)

// GateState is the furthest stage a request reached in the auth gate
type GateState string

const (
	GateUnauthenticated   GateState = "unauthenticated"
	GateTokenExtracted    GateState = "token_extracted"
	GateTokenVerified     GateState = "token_verified"
	GateIdentityConfirmed GateState = "identity_confirmed"
	GateAuthorized        GateState = "authorized"
	GateRejected          GateState = "rejected"
)

// Gate authorizes requests. A request carries a bearer token, the token
// must verify, its subject must still exist and it must have been issued
// after the last password change.
type Gate struct {
	tokens     *TokenService
	identities IdentityChecker
	logger     Logger
}

var _ jwtware.TokenValidator = (*Gate)(nil)

// NewGate wires the token service with the identity checker
func NewGate(tokens *TokenService, identities IdentityChecker, logger Logger) *Gate {
	return &Gate{
		tokens:     tokens,
		identities: identities,
		logger:     normalizeLogger(logger),
	}
}

type authorizedPrincipal struct {
	*principal
	user *User
}

// Validate implements jwtware.TokenValidator. The token has already been
// extracted by the middleware.
func (g *Gate) Validate(ctx context.Context, token string) (jwtware.Identity, error) {
	p, err := g.authorizeToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return p.(*authorizedPrincipal), nil
}

func (g *Gate) authorizeToken(ctx context.Context, token string) (Principal, error) {
	if strings.TrimSpace(token) == "" {
		g.reject(GateUnauthenticated, ErrMissingToken)
		return nil, ErrMissingToken
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		g.reject(GateTokenExtracted, err)
		return nil, err
	}

	user, err := g.identities.CheckIdentity(ctx, claims)
	if err != nil {
		state := GateTokenVerified
		if HasTextCode(err, TextCodeStaleCredential) {
			state = GateIdentityConfirmed
		}
		g.reject(state, err)
		return nil, err
	}

	g.logger.Debug("auth gate authorized request", "state", string(GateAuthorized), "user_id", claims.UserID())

	return &authorizedPrincipal{
		principal: &principal{
			userID:   user.ID.String(),
			token:    token,
			issuedAt: claims.IssuedAt(),
		},
		user: user,
	}, nil
}

func (g *Gate) reject(state GateState, err error) {
	args := []any{"state", string(state), "result", string(GateRejected)}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		args = append(args, "text_code", richErr.TextCode)
		if len(richErr.Metadata) > 0 {
			args = append(args, "metadata", richErr.Metadata)
		}
	} else {
		args = append(args, "error", err)
	}
	g.logger.Info("auth gate rejected request", args...)
}

// Middleware guards protected routes. The principal is stored in the router
// locals and in the request context.
func (g *Gate) Middleware() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		TokenValidator: g,
		ContextKey:     PrincipalLocalsKey,
		ErrorHandler: func(_ router.Context, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				g.reject(GateUnauthenticated, ErrMissingToken)
				return ErrMissingToken
			}
			return err
		},
		ContextEnricher: func(ctx context.Context, identity jwtware.Identity) context.Context {
			p, ok := identity.(*authorizedPrincipal)
			if !ok {
				return ctx
			}
			return WithUserContext(WithPrincipal(ctx, p), p.user)
		},
	})
}
