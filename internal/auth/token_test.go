package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	a := New("test-secret", time.Hour)
	require.True(t, a.Enabled())

	token, err := a.GenerateToken("alice")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := a.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, issuer, claims.Issuer)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	signer := New("secret-one", time.Hour)
	verifier := New("secret-two", time.Hour)

	token, err := signer.GenerateToken("alice")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	a := New("test-secret", -time.Minute)

	token, err := a.GenerateToken("alice")
	require.NoError(t, err)

	_, err = a.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	a := New("test-secret", time.Hour)

	_, err := a.ValidateToken("not-a-token")
	assert.Error(t, err)

	_, err = a.ValidateToken("")
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	a := New("test-secret", time.Hour)

	token, err := a.GenerateToken("alice")
	require.NoError(t, err)

	assert.NoError(t, a.Authorize(token, "alice"))
	assert.ErrorIs(t, a.Authorize(token, "bob"), ErrInvalidToken)
}

func TestDisabledAuthenticator(t *testing.T) {
	a := New("", time.Hour)

	assert.False(t, a.Enabled())
	assert.NoError(t, a.Authorize("anything", "alice"))

	_, err := a.GenerateToken("alice")
	assert.Error(t, err)
}
