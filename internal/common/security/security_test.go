package security

import (
	"context"
	"testing"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenRoundTrip(t *testing.T) {
	InitJWT([]byte("test-secret"), time.Hour)

	tokenString, err := GenerateToken("user-1", "teacher")
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	token, err := jwtauth.VerifyToken(TokenAuth, tokenString)
	require.NoError(t, err)
	claims, err := token.AsMap(context.Background())
	require.NoError(t, err)

	id, err := GetUserIDFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id)

	role, err := GetUserRoleFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, "teacher", role)

	jti, exp, err := GetTokenIDFromClaims(claims)
	require.NoError(t, err)
	assert.NotEmpty(t, jti)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	// a second token gets its own jti
	tokenString2, err := GenerateToken("user-1", "teacher")
	require.NoError(t, err)
	token2, err := jwtauth.VerifyToken(TokenAuth, tokenString2)
	require.NoError(t, err)
	claims2, err := token2.AsMap(context.Background())
	require.NoError(t, err)
	jti2, _, err := GetTokenIDFromClaims(claims2)
	require.NoError(t, err)
	assert.NotEqual(t, jti, jti2)
}

func TestClaimHelpersRejectMissing(t *testing.T) {
	_, err := GetUserIDFromClaims(map[string]interface{}{})
	assert.Error(t, err)
	_, err = GetUserRoleFromClaims(map[string]interface{}{"role": 42})
	assert.Error(t, err)
	_, _, err = GetTokenIDFromClaims(map[string]interface{}{"jti": "x"})
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("saxophone")
	require.NoError(t, err)
	assert.NotEqual(t, "saxophone", hash)

	assert.True(t, CheckPasswordHash("saxophone", hash))
	assert.False(t, CheckPasswordHash("trombone", hash))
	assert.False(t, CheckPasswordHash("saxophone", "not-a-hash"))
}

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken(32)
	require.NoError(t, err)
	b, err := GenerateOpaqueToken(32)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "+", "must be URL safe")
	assert.NotContains(t, a, "/", "must be URL safe")
}
