package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"class-enroll/internal/model"
)

func TestIssueAndVerify(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	user := model.User{ID: "user-1", IsAdmin: true}
	token, expiresAt, err := m.Issue(user, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	identity, err := m.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.UserID)
	assert.True(t, identity.IsAdmin)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	m := NewTokenManager("secret", time.Hour)

	_, err := m.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Token signed with a different secret.
	other := NewTokenManager("other-secret", time.Hour)
	token, _, err := other.Issue(model.User{ID: "user-1"}, time.Now())
	require.NoError(t, err)
	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)

	token, _, err := m.Issue(model.User{ID: "user-1"}, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	_, err = m.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
