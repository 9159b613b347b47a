package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("0123456789abcdef0123")

func TestGenerateAndParseToken(t *testing.T) {
	token, expires, err := GenerateToken(42, secret, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	id, err := ParseToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
}

func TestParseTokenRejects(t *testing.T) {
	expired, _, err := GenerateToken(1, secret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	good, _, err := GenerateToken(1, secret, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(good, []byte("another-secret-value"))
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("not-a-token", secret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: 1})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseToken(unsigned, secret)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
