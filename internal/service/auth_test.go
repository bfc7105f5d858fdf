package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotasks/api/internal/auth"
	"geotasks/api/internal/model"
)

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "Alice", "alice@example.com")

	resp, err := f.auth.Login(ctx, "Alice@Example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, resp.ID)
	assert.Equal(t, "alice", resp.Username)
	assert.Equal(t, auth.TokenType, resp.TokenType)

	email, err := f.tokens.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@example.com")
	inactive := f.register(t, "bob", "bob@example.com")
	_, err := f.users.Deactivate(ctx, inactive, inactive.ID)
	require.NoError(t, err)

	cases := map[string][2]string{
		"wrong password": {alice.Email, "wrong"},
		"unknown email":  {"nobody@example.com", "secret123"},
		"inactive user":  {"bob@example.com", "secret123"},
		"malformed":      {"not-an-email", "secret123"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.auth.Login(ctx, c[0], c[1])
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrIncorrectLogin)
			assert.Equal(t, "Incorrect email or password", err.Error())
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.auth.RegisterAndLogin(ctx, model.UserCreate{Username: "Alice", Email: "alice@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, "alice", resp.Username)
	assert.NotEmpty(t, resp.AccessToken)

	_, err = f.auth.RegisterAndLogin(ctx, model.UserCreate{Username: "Alice", Email: "alice2@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, ErrUsernameExists)
}

func TestResolveIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.register(t, "alice", "alice@example.com")
	token, _, err := f.tokens.Issue(alice.Email)
	require.NoError(t, err)

	user, err := f.auth.ResolveIdentity(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	_, err = f.auth.ResolveIdentity(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	ghost, _, err := f.tokens.Issue("ghost@example.com")
	require.NoError(t, err)
	_, err = f.auth.ResolveIdentity(ctx, ghost)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.users.Deactivate(ctx, alice, alice.ID)
	require.NoError(t, err)
	_, err = f.auth.ResolveIdentity(ctx, token)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	alice := f.register(t, "alice", "alice@example.com")

	tok, err := f.auth.Refresh(context.Background(), alice)
	require.NoError(t, err)
	assert.Equal(t, auth.TokenType, tok.TokenType)

	email, err := f.tokens.Parse(tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, alice.Email, email)
}
