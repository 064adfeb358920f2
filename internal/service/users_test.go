package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class-enroll/internal/auth"
	"class-enroll/internal/model"
	"class-enroll/internal/repository"
)

func newUserFixture(t *testing.T) (*UserService, *auth.TokenManager) {
	t.Helper()
	store := repository.NewMemoryStore()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	svc := NewUserService(store, tokens)
	svc.now = func() time.Time { return testNow }
	return svc, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	svc, tokens := newUserFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, model.RegisterUserRequest{
		Email:       "  Ada@Example.COM ",
		DisplayName: "Ada",
		Password:    "correct horse",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	resp, err := svc.Login(ctx, model.LoginRequest{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	identity, err := tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, identity.UserID)
	assert.False(t, identity.IsAdmin)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newUserFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, model.RegisterUserRequest{Email: "", Password: "long enough"})
	assert.Error(t, err)

	_, err = svc.Register(ctx, model.RegisterUserRequest{Email: "not-an-email", Password: "long enough"})
	assert.Error(t, err)

	_, err = svc.Register(ctx, model.RegisterUserRequest{Email: "ok@example.com", Password: "short"})
	assert.Error(t, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _ := newUserFixture(t)
	ctx := context.Background()

	req := model.RegisterUserRequest{Email: "dup@example.com", Password: "long enough"}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	_, err = svc.Register(ctx, req)
	assert.ErrorIs(t, err, repository.ErrEmailTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newUserFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, model.RegisterUserRequest{Email: "ada@example.com", Password: "correct horse"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, model.LoginRequest{Email: "ada@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown email is indistinguishable from a wrong password.
	_, err = svc.Login(ctx, model.LoginRequest{Email: "nobody@example.com", Password: "correct horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
