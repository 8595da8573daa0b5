package climb

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultTokenTTL is how long an issued token stays valid
const DefaultTokenTTL = 24 * time.Hour

// TokenService issues and verifies signed auth tokens. Verification is a
// pure signature and expiry check, it never consults the store.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	logger     Logger
	now        func() time.Time
}

// NewTokenService creates a new TokenService instance. An empty signing key
// is a configuration error.
func NewTokenService(signingKey []byte, ttl time.Duration, issuer string, logger Logger) (*TokenService, error) {
	if len(signingKey) == 0 {
		return nil, NewConfigurationError("token signing secret is required")
	}

	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	key := make([]byte, len(signingKey))
	copy(key, signingKey)

	return &TokenService{
		signingKey: key,
		ttl:        ttl,
		issuer:     issuer,
		logger:     normalizeLogger(logger),
		now:        time.Now,
	}, nil
}

// WithClock overrides the time source used to stamp iat and exp
func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

// TTL returns the configured token lifetime
func (ts *TokenService) TTL() time.Duration {
	return ts.ttl
}

// Issue creates a signed token for the given user id
func (ts *TokenService) Issue(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", goerrors.New("user id must not be empty", goerrors.CategoryInternal)
	}

	now := ts.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
		UID: userID,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.sign(claims)
}

func (ts *TokenService) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Verify parses and validates a token string. Any failure, including expiry,
// is reported as ErrInvalidToken. The underlying reason is kept in metadata
// for logs.
func (ts *TokenService) Verify(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
		jwt.WithIssuedAt(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Warn("token service rejected unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		reason := "malformed"
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			reason = "expired"
		} else if goerrors.Is(err, jwt.ErrTokenSignatureInvalid) {
			reason = "signature"
		}
		return nil, goerrors.Wrap(err, ErrInvalidToken.Category, ErrInvalidToken.Message).
			WithCode(ErrInvalidToken.Code).
			WithTextCode(ErrInvalidToken.TextCode).
			WithMetadata(map[string]any{"reason": reason})
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID() == "" {
		ts.logger.Warn("token service could not decode claims")
		return nil, ErrInvalidToken
	}

	return claims, nil
}
