package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	cfg := NewJWTConfig("secret")

	token, err := cfg.GenerateToken(42, "alice")
	require.NoError(t, err)

	claims, err := ValidateJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "42", claims.Subject)
}

func TestValidateJWT_WrongSecret(t *testing.T) {
	token, err := NewJWTConfig("secret").GenerateToken(1, "")
	require.NoError(t, err)

	_, err = ValidateJWT(token, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateJWT_Expired(t *testing.T) {
	cfg := &JWTConfig{Secret: "secret", ExpireTime: -time.Minute}
	token, err := cfg.GenerateToken(1, "")
	require.NoError(t, err)

	_, err = ValidateJWT(token, "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateJWT_SubjectOnly(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	claims, err := ValidateJWT(signed, "secret")
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
}

func TestValidateJWT_Empty(t *testing.T) {
	_, err := ValidateJWT("", "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
