package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	assert.NotEqual(t, "s3cret", hash)
	assert.True(t, VerifyPassword("s3cret", hash))
	assert.False(t, VerifyPassword("wrong", hash))
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", 30*time.Minute)

	token, err := m.GenerateToken(42, "alice")
	require.NoError(t, err)

	claims, err := m.ParseToken(token)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, "alice", claims.Username)
}

func TestTokenRejectedWithOtherSecret(t *testing.T) {
	token, err := NewTokenManager("one", time.Minute).GenerateToken(1, "a")
	require.NoError(t, err)

	_, err = NewTokenManager("two", time.Minute).ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenRejected(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := m.GenerateToken(1, "a")
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestUnsignedTokenRejected(t *testing.T) {
	m := NewTokenManager("secret", time.Minute)
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ParseToken("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
