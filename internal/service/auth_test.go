package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/restaurant/internal/models"
	"github.com/Skotchmaster/restaurant/internal/mykafka"
	"github.com/Skotchmaster/restaurant/pkg/tokens"
)

func TestAuthService_Register_Validation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	tests := []struct {
		name     string
		userName string
		email    string
		password string
		field    string
	}{
		{name: "empty name", userName: "", email: "a@example.com", password: "secret1", field: "name"},
		{name: "empty email", userName: "A", email: "", password: "secret1", field: "email"},
		{name: "bad email", userName: "A", email: "not-an-email", password: "secret1", field: "email"},
		{name: "empty password", userName: "A", email: "a@example.com", password: "", field: "password"},
		{name: "short password", userName: "A", email: "a@example.com", password: "12345", field: "password"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := env.Auth.Register(context.Background(), tt.userName, tt.email, tt.password)
			require.ErrorIs(t, err, ErrValidation)
			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.field, fe.Field)
		})
	}
}

func TestAuthService_Register_SuccessAndConflict(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.Auth.Register(ctx, "Alice", "Alice@Example.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	require.NotNil(t, user.PasswordHash)
	assert.NotEqual(t, "pw123456", *user.PasswordHash)

	view, err := env.Cart.GetCart(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = env.Auth.Register(ctx, "Alice 2", "alice@example.com", "pw123456")
	assert.ErrorIs(t, err, ErrConflict)

	assert.Equal(t, []string{"user_registered"}, env.Events.Types(mykafka.TopicUserEvents))
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.Auth.Register(ctx, "Alice", "alice@example.com", "pw123456")
	require.NoError(t, err)

	res, err := env.Auth.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)
	require.NotEmpty(t, res.AccessToken)
	require.NotEmpty(t, res.RefreshToken)
	assert.False(t, res.IsAdmin)

	claims, err := tokens.AccessClaimsFromToken(res.AccessToken, env.Auth.Tokens.AccessSecret)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID.String(), claims.Subject)
	assert.Equal(t, models.RoleUser, claims.Role)

	_, err = env.Auth.Login(ctx, "alice@example.com", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.Auth.Login(ctx, "nobody@example.com", "pw123456")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.Auth.Login(ctx, "", "pw123456")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthService_Refresh_RotatesToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.Auth.Register(ctx, "Alice", "alice@example.com", "pw123456")
	require.NoError(t, err)
	login, err := env.Auth.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)

	oldClaims, err := tokens.RefreshClaimsFromToken(login.RefreshToken, env.Auth.Tokens.RefreshSecret)
	require.NoError(t, err)

	refreshed, err := env.Auth.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	old, err := env.Repo.FindRefreshByID(ctx, oldClaims.ID)
	require.NoError(t, err)
	assert.True(t, old.Revoked)

	_, err = env.Auth.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_Refresh_InvalidToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	res, err := env.Auth.Refresh(context.Background(), "not-a-valid-jwt")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_LogOut_RevokesRefreshToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.Auth.LogOut(ctx, ""))

	_, err := env.Auth.Register(ctx, "Alice", "alice@example.com", "pw123456")
	require.NoError(t, err)
	login, err := env.Auth.Login(ctx, "alice@example.com", "pw123456")
	require.NoError(t, err)

	require.NoError(t, env.Auth.LogOut(ctx, login.RefreshToken))

	_, err = env.Auth.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestAuthService_LoginOAuth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	registered, err := env.Auth.Register(ctx, "Alice", "alice@example.com", "pw123456")
	require.NoError(t, err)

	res, err := env.Auth.LoginOAuth(ctx, Identity{Provider: "github", Subject: "1", Email: "alice@example.com", Name: "alice"})
	require.NoError(t, err)
	assert.Equal(t, registered.ID, res.User.ID)

	res, err = env.Auth.LoginOAuth(ctx, Identity{Provider: "google", Subject: "g-7", Email: "bob@example.com", Name: "Bob"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", res.User.Name)
	assert.Nil(t, res.User.PasswordHash)

	_, err = env.Auth.Login(ctx, "bob@example.com", "anything")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.Auth.LoginOAuth(ctx, Identity{Provider: "github"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAuthService_Me(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.Auth.Register(ctx, "Alice", "alice@example.com", "pw123456")
	require.NoError(t, err)

	me, err := env.Auth.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", me.Name)
}
