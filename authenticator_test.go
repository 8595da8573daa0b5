package climb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	climb "github.com/goliatone/go-climb"
)

func TestAuther_Login(t *testing.T) {
	stack := newTestStack(t)
	user := stack.createUser(t, "Alice", "alice@example.com", "hunter22")
	ctx := context.Background()

	token, got, err := stack.auther.Login(ctx, " Alice@Example.com ", "hunter22")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, got.ID)

	claims, err := stack.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID())

	require.Len(t, stack.sink.events, 1)
	evt := stack.sink.events[0]
	assert.Equal(t, climb.ActivityEventLoginSuccess, evt.EventType)
	assert.Equal(t, user.ID.String(), evt.UserID)
	assert.Equal(t, "alice@example.com", evt.Metadata["identifier"])
}

func TestAuther_LoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "alice@example.com", password: "not-it"},
		{name: "unknown email", email: "carol@example.com", password: "hunter22"},
		{name: "empty password", email: "alice@example.com", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack := newTestStack(t)
			stack.createUser(t, "Alice", "alice@example.com", "hunter22")

			token, user, err := stack.auther.Login(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, climb.ErrInvalidCredentials)
			assert.Empty(t, token)
			assert.Nil(t, user)

			require.Len(t, stack.sink.events, 1)
			evt := stack.sink.events[0]
			assert.Equal(t, climb.ActivityEventLoginFailure, evt.EventType)
			assert.Equal(t, "unknown", evt.Actor.Type)
			assert.Empty(t, evt.UserID)
		})
	}
}

func TestAuther_IssueToken(t *testing.T) {
	stack := newTestStack(t)

	_, err := stack.auther.IssueToken(nil)
	assert.ErrorIs(t, err, climb.ErrIdentityNotFound)

	user := stack.createUser(t, "Alice", "alice@example.com", "hunter22")
	token, err := stack.auther.IssueToken(user)
	require.NoError(t, err)

	claims, err := stack.auther.TokenService().Verify(token)
	require.NoError(t, err)
	assert.True(t, stackEpoch.Equal(claims.IssuedAt()))
	assert.Same(t, stack.credentials, stack.auther.Credentials())
}
