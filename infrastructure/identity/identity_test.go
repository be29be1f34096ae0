package identity

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackit/pkg/auth"
)

func signed(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestAnonymous(t *testing.T) {
	var id Anonymous
	assert.False(t, id.IsAuthorized())
	assert.Empty(t, id.Credential())
}

func TestStaticOpaqueToken(t *testing.T) {
	assert.True(t, NewStatic("opaque-token", nil).IsAuthorized())
	assert.False(t, NewStatic("", nil).IsAuthorized())
}

func TestSessionTracksToken(t *testing.T) {
	s := NewSession(nil)
	assert.False(t, s.IsAuthorized())

	s.SetToken("abc")
	assert.True(t, s.IsAuthorized())
	assert.Equal(t, "abc", s.Credential())

	s.SetToken("")
	assert.False(t, s.IsAuthorized())
}

func TestExpiredJWTIsSignedOut(t *testing.T) {
	s := NewSession(nil)

	s.SetToken(signed(t, "secret", time.Now().Add(time.Hour)))
	assert.True(t, s.IsAuthorized())
	assert.Equal(t, "user-1", s.Subject())

	s.SetToken(signed(t, "secret", time.Now().Add(-time.Hour)))
	assert.False(t, s.IsAuthorized())
}

func TestSignatureCheckedWithSecret(t *testing.T) {
	s := NewSession(auth.NewTokenChecker("secret"))

	s.SetToken(signed(t, "secret", time.Now().Add(time.Hour)))
	assert.True(t, s.IsAuthorized())

	s.SetToken(signed(t, "other", time.Now().Add(time.Hour)))
	assert.False(t, s.IsAuthorized())
}
