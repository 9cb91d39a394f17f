package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SulimanRohany/deen-bridge-sfu-backend/internal/domain"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	v := NewVerifier(testSecret)
	credential := signToken(t, jwt.MapClaims{
		"sub":   "user-1",
		"email": "alice@example.com",
		"name":  "Alice",
		"role":  "moderator",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	claims, err := v.Verify(context.Background(), credential)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice", claims.DisplayName)
	assert.Equal(t, "moderator", claims.Role)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, 5*time.Second)
}

func TestVerifyDisplayNameDefaultsToSub(t *testing.T) {
	v := NewVerifier(testSecret)
	credential := signToken(t, jwt.MapClaims{
		"sub": "user-2",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	claims, err := v.Verify(context.Background(), credential)
	require.NoError(t, err)
	assert.Equal(t, "user-2", claims.DisplayName)
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier(testSecret)
	credential := signToken(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}, testSecret)

	_, err := v.Verify(context.Background(), credential)
	assert.ErrorIs(t, err, domain.ErrAuthTokenExpired)
}

func TestVerifyWrongSecret(t *testing.T) {
	v := NewVerifier(testSecret)
	credential := signToken(t, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, "other-secret")

	_, err := v.Verify(context.Background(), credential)
	assert.ErrorIs(t, err, domain.ErrAuthTokenInvalid)
}

func TestVerifyMissingSub(t *testing.T) {
	v := NewVerifier(testSecret)
	credential := signToken(t, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	_, err := v.Verify(context.Background(), credential)
	assert.ErrorIs(t, err, domain.ErrAuthTokenInvalid)
}

func TestVerifyGarbage(t *testing.T) {
	v := NewVerifier(testSecret)

	_, err := v.Verify(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrAuthTokenInvalid)
}
