package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndValidateToken(t *testing.T) {
	token, err := IssueToken("secret", "u1", "tenant", time.Hour)
	require.NoError(t, err)

	userID, err := ValidateToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := IssueToken("secret", "u1", "tenant", time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken("other-secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenExpired(t *testing.T) {
	token, err := IssueToken("secret", "u1", "tenant", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken("secret", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenGarbage(t *testing.T) {
	_, err := ValidateToken("secret", "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
