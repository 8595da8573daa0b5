package climb_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	climb "github.com/goliatone/go-climb"
)

func TestCredentialStore_CreateUser(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()

	user := stack.createUser(t, " Alice ", "  Alice@Example.com ", "p4ssw0rd")

	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, climb.LevelBeginner, user.ClimbingLevel)
	assert.NotEqual(t, "p4ssw0rd", user.PasswordHash)
	require.NotNil(t, user.PasswordChangedAt)
	assert.Equal(t, stackEpoch.Add(-climb.DefaultPasswordSkew), user.PasswordChangedAt.UTC())

	stored, err := stack.repo.Users().GetByUUID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, stored.Email)
	assert.NoError(t, climb.ComparePasswordAndHash("p4ssw0rd", stored.PasswordHash))

	t.Run("duplicate email in any case", func(t *testing.T) {
		_, err := stack.credentials.CreateUser(ctx, &climb.User{
			Name:  "Impostor",
			Email: "ALICE@example.COM",
		}, "another-pass")
		assert.ErrorIs(t, err, climb.ErrDuplicateIdentity)

		count, err := stack.db.NewSelect().Model((*climb.User)(nil)).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := stack.credentials.CreateUser(ctx, &climb.User{
			Name:  "Nobody",
			Email: "nobody@example.com",
		}, "")
		assert.ErrorIs(t, err, climb.ErrNoEmptyString)
	})
}

func TestCredentialStore_HashidUserIDs(t *testing.T) {
	db := newTestDB(t)
	repo := climb.NewRepositoryManager(db)
	store := climb.NewCredentialStore(repo.Users(),
		climb.WithPasswordCost(bcrypt.MinCost),
		climb.WithHashidUserIDs(true),
		climb.WithCredentialLogger(nopLogger{}),
	)

	user, err := store.CreateUser(context.Background(), &climb.User{
		Name:  "Hash",
		Email: "Hash@Example.com",
	}, "p4ssw0rd")
	require.NoError(t, err)

	expected, err := hashid.NewUUID("hash@example.com")
	require.NoError(t, err)
	assert.Equal(t, expected, user.ID)
}

func TestCredentialStore_Authenticate(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	user := stack.createUser(t, "Alice", "alice@example.com", "p4ssw0rd")

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid credentials", email: "alice@example.com", password: "p4ssw0rd"},
		{name: "email is case insensitive", email: " ALICE@example.com", password: "p4ssw0rd"},
		{name: "wrong password", email: "alice@example.com", password: "nope", wantErr: climb.ErrInvalidCredentials},
		{name: "unknown email", email: "mallory@example.com", password: "p4ssw0rd", wantErr: climb.ErrInvalidCredentials},
		{name: "empty password", email: "alice@example.com", password: "", wantErr: climb.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := stack.credentials.Authenticate(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, got.ID)
		})
	}
}

func TestCredentialStore_ChangePasswordMakesTokensStale(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	user := stack.createUser(t, "Alice", "alice@example.com", "p4ssw0rd")

	oldToken, err := stack.tokens.Issue(user.ID.String())
	require.NoError(t, err)

	oldClaims, err := stack.tokens.Verify(oldToken)
	require.NoError(t, err)
	_, err = stack.credentials.CheckIdentity(ctx, oldClaims)
	require.NoError(t, err)

	stack.clock.Advance(time.Minute)
	require.NoError(t, stack.credentials.ChangePassword(ctx, user, "n3w-passw0rd"))

	_, err = stack.credentials.CheckIdentity(ctx, oldClaims)
	assert.ErrorIs(t, err, climb.ErrStaleCredential)

	newToken, err := stack.tokens.Issue(user.ID.String())
	require.NoError(t, err)
	newClaims, err := stack.tokens.Verify(newToken)
	require.NoError(t, err)

	current, err := stack.credentials.CheckIdentity(ctx, newClaims)
	require.NoError(t, err)
	assert.Equal(t, user.ID, current.ID)

	_, err = stack.credentials.Authenticate(ctx, "alice@example.com", "p4ssw0rd")
	assert.ErrorIs(t, err, climb.ErrInvalidCredentials)
	_, err = stack.credentials.Authenticate(ctx, "alice@example.com", "n3w-passw0rd")
	assert.NoError(t, err)
}

func TestCredentialStore_TokenInSameSecondAsChangeSurvivesSkew(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	user := stack.createUser(t, "Alice", "alice@example.com", "p4ssw0rd")

	stack.clock.Advance(time.Hour + 400*time.Millisecond)
	require.NoError(t, stack.credentials.ChangePassword(ctx, user, "n3w-passw0rd"))

	// iat is truncated to the second, the skew keeps it after the change
	token, err := stack.tokens.Issue(user.ID.String())
	require.NoError(t, err)
	claims, err := stack.tokens.Verify(token)
	require.NoError(t, err)

	_, err = stack.credentials.CheckIdentity(ctx, claims)
	assert.NoError(t, err)
}

func TestCredentialStore_CheckIdentity(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	user := stack.createUser(t, "Alice", "alice@example.com", "p4ssw0rd")

	t.Run("nil claims", func(t *testing.T) {
		_, err := stack.credentials.CheckIdentity(ctx, nil)
		assert.ErrorIs(t, err, climb.ErrInvalidToken)
	})

	t.Run("subject is not a uuid", func(t *testing.T) {
		token, err := stack.tokens.Issue("not-a-uuid")
		require.NoError(t, err)
		claims, err := stack.tokens.Verify(token)
		require.NoError(t, err)

		_, err = stack.credentials.CheckIdentity(ctx, claims)
		assert.True(t, climb.HasTextCode(err, climb.TextCodeInvalidToken))
	})

	t.Run("deleted user", func(t *testing.T) {
		token, err := stack.tokens.Issue(user.ID.String())
		require.NoError(t, err)
		claims, err := stack.tokens.Verify(token)
		require.NoError(t, err)

		_, err = stack.db.NewDelete().Model((*climb.User)(nil)).Where("id = ?", user.ID).Exec(ctx)
		require.NoError(t, err)

		_, err = stack.credentials.CheckIdentity(ctx, claims)
		assert.ErrorIs(t, err, climb.ErrIdentityNotFound)
	})
}
