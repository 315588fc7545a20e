// Package jwt issues and checks the editor tokens that unlock drafts,
// previews and the tree actions.
package jwt

import (
	"errors"
	"fmt"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer   = "nine3v"
	audience = "nine3v-editor"

	defaultSecret = "nine3v-secret-change-me"
)

var (
	mu     sync.RWMutex
	secret = []byte(defaultSecret)
)

// ErrNoEditor is returned for tokens that do not name an editor.
var ErrNoEditor = errors.New("token has no editor subject")

// SetSecret replaces the signing key. Empty keeps the current one.
func SetSecret(s string) {
	if s == "" {
		return
	}
	mu.Lock()
	secret = []byte(s)
	mu.Unlock()
}

func key() []byte {
	mu.RLock()
	defer mu.RUnlock()
	return secret
}

// Claims is the editor token payload. Subject carries the editor id.
type Claims struct {
	jwtlib.RegisteredClaims
}

// Editor returns the editor id the token was issued to.
func (c *Claims) Editor() string { return c.Subject }

// Sign issues a token for editor that expires after ttl.
func Sign(editor string, ttl time.Duration) (string, error) {
	if editor == "" {
		return "", ErrNoEditor
	}
	now := time.Now()
	claims := Claims{jwtlib.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   editor,
		Issuer:    issuer,
		Audience:  jwtlib.ClaimStrings{audience},
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
	}}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(key())
}

// Parse checks signature, issuer, audience and expiry.
func Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (interface{}, error) {
		return key(), nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(issuer),
		jwtlib.WithAudience(audience),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("editor token: %w", err)
	}
	if claims.Subject == "" {
		return nil, ErrNoEditor
	}
	return claims, nil
}
