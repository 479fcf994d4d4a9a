// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that fail verification or lack a subject.
var ErrInvalidToken = errors.New("auth: invalid token")

// Actor is the {id, name} identity a token vouches for.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Issuer signs and verifies actor tokens with an ed25519 key pair.
type Issuer struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	// expireAfter is the token lifetime; zero means tokens never expire.
	expireAfter time.Duration
}

// ParseExpireTime reads a TOKEN_EXPIRE_TIME value. "", "0" and "never" mean no expiry.
func ParseExpireTime(raw string) (time.Duration, error) {
	if raw == "" || raw == "0" || raw == "never" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

// NewIssuer generates a fresh ed25519 key pair at runtime.
func NewIssuer(expireAfter time.Duration) (*Issuer, error) {
	publicKey, privateKey, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key pair: %w", err)
	}
	return &Issuer{privateKey: privateKey, publicKey: publicKey, expireAfter: expireAfter}, nil
}

// NewIssuerFromPath reads raw ed25519 private/public keys from file.
func NewIssuerFromPath(privatePath, publicPath string, expireAfter time.Duration) (*Issuer, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("ed25519 key files have unexpected sizes")
	}
	return &Issuer{
		privateKey:  ed25519.PrivateKey(privateKeyData),
		publicKey:   ed25519.PublicKey(publicKeyData),
		expireAfter: expireAfter,
	}, nil
}

// CreateJWT signs a token with "sub" = actor id and "name" = display name.
func (i *Issuer) CreateJWT(actor Actor) (string, error) {
	claims := jwt.MapClaims{
		"sub":  actor.ID,
		"name": actor.Name,
		"iat":  time.Now().Unix(),
	}
	if i.expireAfter > 0 {
		claims["exp"] = time.Now().Add(i.expireAfter).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(i.privateKey)
}

// AuthenticateJWT verifies a token and returns the actor it carries.
func (i *Issuer) AuthenticateJWT(tokenString string) (Actor, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.publicKey, nil
	})
	if err != nil {
		return Actor{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !t.Valid {
		return Actor{}, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, ErrInvalidToken
	}
	id, ok := claims["sub"].(string)
	if !ok || id == "" {
		return Actor{}, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	return Actor{ID: id, Name: name}, nil
}
