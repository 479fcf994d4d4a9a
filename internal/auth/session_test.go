package auth

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuerRoundTrip(t *testing.T) {
	issuer, err := NewIssuer(0)
	require.NoError(t, err)

	token, err := issuer.CreateJWT(Actor{ID: "p1", Name: "Nova"})
	require.NoError(t, err)

	actor, err := issuer.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, Actor{ID: "p1", Name: "Nova"}, actor)
}

func TestIssuerRejectsForeignAndExpiredTokens(t *testing.T) {
	a, err := NewIssuer(0)
	require.NoError(t, err)
	b, err := NewIssuer(0)
	require.NoError(t, err)

	token, err := a.CreateJWT(Actor{ID: "p1"})
	require.NoError(t, err)
	_, err = b.AuthenticateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	stale := jwt.NewWithClaims(jwt.SigningMethodEdDSA, jwt.MapClaims{
		"sub": "p1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})
	token, err = stale.SignedString(a.privateKey)
	require.NoError(t, err)
	_, err = a.AuthenticateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.AuthenticateJWT("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuerRejectsOtherSigningMethods(t *testing.T) {
	issuer, err := NewIssuer(0)
	require.NoError(t, err)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "p1"})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = issuer.AuthenticateJWT(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuerRequiresSubject(t *testing.T) {
	issuer, err := NewIssuer(0)
	require.NoError(t, err)
	token, err := issuer.CreateJWT(Actor{Name: "anonymous"})
	require.NoError(t, err)
	_, err = issuer.AuthenticateJWT(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuerFromPath(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	dir := t.TempDir()
	privPath := filepath.Join(dir, "ed25519.key")
	pubPath := filepath.Join(dir, "ed25519.pub")
	require.NoError(t, os.WriteFile(privPath, priv, 0o600))
	require.NoError(t, os.WriteFile(pubPath, pub, 0o644))

	issuer, err := NewIssuerFromPath(privPath, pubPath, time.Hour)
	require.NoError(t, err)
	token, err := issuer.CreateJWT(Actor{ID: "p2", Name: "Atlas"})
	require.NoError(t, err)
	actor, err := issuer.AuthenticateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, "p2", actor.ID)

	_, err = NewIssuerFromPath(filepath.Join(dir, "missing"), pubPath, 0)
	assert.Error(t, err)
}

func TestParseExpireTime(t *testing.T) {
	for _, raw := range []string{"", "0", "never"} {
		d, err := ParseExpireTime(raw)
		require.NoError(t, err)
		assert.Zero(t, d)
	}
	d, err := ParseExpireTime("72h")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, d)
	_, err = ParseExpireTime("soon")
	assert.Error(t, err)
}
