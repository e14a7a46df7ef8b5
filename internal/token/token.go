// Package token verifies the access tokens issued by the auth service.
// Tokens are RS256-signed; this service only holds the public key.
package token

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Role tiers recognized across the platform, lowest first.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super-admin"
)

var roleRank = map[string]int{
	RoleUser:       0,
	RoleAdmin:      1,
	RoleSuperAdmin: 2,
}

// Claims is the platform's access-token payload.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles"`
}

// HasAtLeast reports whether any of the claims' roles meets the minimum
// tier.
func (c *Claims) HasAtLeast(minRole string) bool {
	min, ok := roleRank[minRole]
	if !ok {
		return false
	}
	for _, r := range c.Roles {
		if rank, ok := roleRank[r]; ok && rank >= min {
			return true
		}
	}
	return false
}

// Verifier validates RS256 access tokens against the auth service's public
// key.
type Verifier struct {
	key *rsa.PublicKey
}

func NewVerifier(key *rsa.PublicKey) *Verifier { return &Verifier{key: key} }

// NewVerifierFromFile loads a PEM-encoded RSA public key.
func NewVerifierFromFile(path string) (*Verifier, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jwt public key: %w", err)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse jwt public key: %w", err)
	}
	return &Verifier{key: key}, nil
}

// Verify parses and validates the token and returns its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.key, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}
