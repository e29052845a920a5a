package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("hunter2")

	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)
	assert.True(t, CheckPassword("hunter2", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestTokenRoundTrip(t *testing.T) {
	config := Config{Secret: "test-secret", ExpiryHours: 1}

	token, err := GenerateToken(config, "alice", RoleOperator)
	require.NoError(t, err)

	claims, err := ValidateToken(config.Secret, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, RoleOperator, claims.Role)
	assert.Equal(t, "alice", claims.Subject)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(Config{Secret: "right"}, "alice", RoleOperator)
	require.NoError(t, err)

	_, err = ValidateToken("wrong", token)

	assert.Error(t, err)
}

func TestValidateRejectsGarbage(t *testing.T) {
	_, err := ValidateToken("secret", "not.a.token")

	assert.Error(t, err)
}

func TestServiceLogin(t *testing.T) {
	svc, err := NewService(Config{Secret: "s"}, "admin", "correct horse")
	require.NoError(t, err)

	token, err := svc.Login("admin", "correct horse")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
}

func TestServiceLoginRejectsBadCredentials(t *testing.T) {
	svc, err := NewService(Config{Secret: "s"}, "admin", "correct horse")
	require.NoError(t, err)

	_, err = svc.Login("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login("root", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNewServiceRequiresCredentials(t *testing.T) {
	_, err := NewService(Config{Secret: "s"}, "", "pw")
	assert.Error(t, err)

	_, err = NewService(Config{Secret: "s"}, "admin", "")
	assert.Error(t, err)
}
