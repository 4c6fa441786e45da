package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-do-not-use"

func TestJWTValidator(t *testing.T) {
	validator, err := NewJWTValidator(JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     testSecret,
		Issuer:        "guildhall",
		Audience:      []string{"guildhall-api"},
	})
	require.NoError(t, err)

	t.Run("ValidToken", func(t *testing.T) {
		token, err := NewJWTGenerator(testSecret, "guildhall", []string{"guildhall-api"}, time.Hour).
			GenerateToken("user-a", "Ash", []string{"member"})
		require.NoError(t, err)

		claims, err := validator.ValidateToken("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, "user-a", claims.UserID)
		assert.Equal(t, "Ash", claims.Name)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		token, err := NewJWTGenerator(testSecret, "guildhall", []string{"guildhall-api"}, -time.Minute).
			GenerateToken("user-a", "", nil)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		token, err := NewJWTGenerator("other-secret", "guildhall", []string{"guildhall-api"}, time.Hour).
			GenerateToken("user-a", "", nil)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("WrongAudience", func(t *testing.T) {
		token, err := NewJWTGenerator(testSecret, "guildhall", []string{"someone-else"}, time.Hour).
			GenerateToken("user-a", "", nil)
		require.NoError(t, err)

		_, err = validator.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidClaims)
	})

	t.Run("MissingToken", func(t *testing.T) {
		_, err := validator.ValidateToken("Bearer ")
		assert.ErrorIs(t, err, ErrMissingToken)
	})
}

func TestNewJWTValidatorRequiresKey(t *testing.T) {
	_, err := NewJWTValidator(JWTConfig{SigningMethod: "HS256"})
	assert.Error(t, err)

	_, err = NewJWTValidator(JWTConfig{SigningMethod: "RS256"})
	assert.Error(t, err)

	_, err = NewJWTValidator(JWTConfig{SigningMethod: "ES512", SecretKey: "x"})
	assert.Error(t, err)
}

func TestUserContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetUserFromContext(ctx))
	assert.Empty(t, UserIDFromContext(ctx))

	ctx = SetUserInContext(ctx, &UserContext{UserID: "u1", Email: "misty@cerulean.gym"})
	assert.Equal(t, "u1", UserIDFromContext(ctx))
	assert.Equal(t, "misty", GetUserFromContext(ctx).DisplayName())
}
