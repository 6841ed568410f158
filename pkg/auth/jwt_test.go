package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	service := NewTokenService("test-secret", 1)

	token, err := service.GenerateToken("operator")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	subject, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", subject)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a", 1).GenerateToken("operator")
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", 1).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	service := NewTokenService("test-secret", 1)

	_, err := service.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	service := &TokenService{secret: "test-secret", tokenExpiration: -time.Hour}

	token, err := service.GenerateToken("operator")
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.Error(t, err)
}
