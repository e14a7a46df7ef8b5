package token

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newKeyPair(t *testing.T) (*rsa.PrivateKey, *Verifier) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key, NewVerifier(&key.PublicKey)
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims *Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerify(t *testing.T) {
	key, verifier := newKeyPair(t)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{RoleAdmin},
	}

	got, err := verifier.Verify(signToken(t, key, claims))
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got.Subject != "user-1" {
		t.Errorf("Subject = %q, want user-1", got.Subject)
	}
	if len(got.Roles) != 1 || got.Roles[0] != RoleAdmin {
		t.Errorf("Roles = %v", got.Roles)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	key, verifier := newKeyPair(t)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	if _, err := verifier.Verify(signToken(t, key, claims)); err == nil {
		t.Error("expired token should fail verification")
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	key, _ := newKeyPair(t)
	_, otherVerifier := newKeyPair(t)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	if _, err := otherVerifier.Verify(signToken(t, key, claims)); err == nil {
		t.Error("token signed with a different key should fail")
	}
}

func TestVerifyRejectsWrongMethod(t *testing.T) {
	_, verifier := newKeyPair(t)

	// HMAC-signed token must be rejected even before key comparison
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := tok.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := verifier.Verify(signed); err == nil {
		t.Error("HS256 token should fail verification")
	}
}

func TestVerifyGarbage(t *testing.T) {
	_, verifier := newKeyPair(t)
	if _, err := verifier.Verify("not.a.token"); err == nil {
		t.Error("garbage input should fail verification")
	}
}

func TestHasAtLeast(t *testing.T) {
	tests := []struct {
		name    string
		roles   []string
		minRole string
		want    bool
	}{
		{"admin meets admin", []string{RoleAdmin}, RoleAdmin, true},
		{"super-admin meets admin", []string{RoleSuperAdmin}, RoleAdmin, true},
		{"user below admin", []string{RoleUser}, RoleAdmin, false},
		{"admin below super-admin", []string{RoleAdmin}, RoleSuperAdmin, false},
		{"mixed roles take the highest", []string{RoleUser, RoleSuperAdmin}, RoleSuperAdmin, true},
		{"no roles", nil, RoleUser, false},
		{"unknown role is ignored", []string{"owner"}, RoleUser, false},
		{"unknown minimum never passes", []string{RoleSuperAdmin}, "root", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Claims{Roles: tt.roles}
			if got := c.HasAtLeast(tt.minRole); got != tt.want {
				t.Errorf("HasAtLeast(%q) with %v = %v, want %v", tt.minRole, tt.roles, got, tt.want)
			}
		})
	}
}
