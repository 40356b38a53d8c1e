package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivener-app/scrivener/sessions"
)

const testSecret = "test-secret-do-not-use"

func TestMintAndVerify(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)

	token, err := MintToken(testSecret, sessions.Identity{ID: "u-1", Username: "pat", Role: "admin"}, time.Hour)
	require.NoError(t, err)

	identity, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", identity.ID)
	assert.Equal(t, "pat", identity.Username)
	assert.True(t, identity.IsAdmin())
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)

	token, err := MintToken("some-other-secret", sessions.Identity{ID: "u-1"}, time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	v, err := NewJWTVerifier(testSecret, WithLeeway(0))
	require.NoError(t, err)

	token, err := MintToken(testSecret, sessions.Identity{ID: "u-1"}, -time.Hour)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), "")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyUserIDClaimFallback(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)

	mint := func(claims jwt.MapClaims) string {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := tok.SignedString([]byte(testSecret))
		require.NoError(t, err)
		return signed
	}

	identity, err := v.Verify(context.Background(), mint(jwt.MapClaims{"userId": "legacy-7"}))
	require.NoError(t, err)
	assert.Equal(t, "legacy-7", identity.ID)

	identity, err = v.Verify(context.Background(), mint(jwt.MapClaims{"sub": "subject-9"}))
	require.NoError(t, err)
	assert.Equal(t, "subject-9", identity.ID)

	_, err = v.Verify(context.Background(), mint(jwt.MapClaims{"username": "no-id"}))
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongAlgorithm(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)

	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"id":  "u-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier("")
	require.Error(t, err)
}
