package mw

import (
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/portalstack/portal-server/internal/logger"
	"github.com/portalstack/portal-server/internal/token"
)

func newSignedRequest(t *testing.T, key *rsa.PrivateKey, roles []string) *http.Request {
	t.Helper()
	claims := &token.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	return req
}

func okHandler(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireRole(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	verifier := token.NewVerifier(&key.PublicKey)
	guard := RequireRole(verifier, token.RoleAdmin, logger.Nop())

	t.Run("missing token", func(t *testing.T) {
		var called bool
		rec := httptest.NewRecorder()
		guard(okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusUnauthorized || called {
			t.Errorf("status = %d, called = %v", rec.Code, called)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		var called bool
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.token")
		rec := httptest.NewRecorder()
		guard(okHandler(&called)).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized || called {
			t.Errorf("status = %d, called = %v", rec.Code, called)
		}
	})

	t.Run("insufficient role", func(t *testing.T) {
		var called bool
		rec := httptest.NewRecorder()
		guard(okHandler(&called)).ServeHTTP(rec, newSignedRequest(t, key, []string{token.RoleUser}))
		if rec.Code != http.StatusForbidden || called {
			t.Errorf("status = %d, called = %v", rec.Code, called)
		}
	})

	t.Run("sufficient role", func(t *testing.T) {
		var called bool
		rec := httptest.NewRecorder()
		guard(okHandler(&called)).ServeHTTP(rec, newSignedRequest(t, key, []string{token.RoleSuperAdmin}))
		if rec.Code != http.StatusOK || !called {
			t.Errorf("status = %d, called = %v", rec.Code, called)
		}
	})

	t.Run("claims reach the handler", func(t *testing.T) {
		var subject string
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c := ClaimsFrom(r.Context()); c != nil {
				subject = c.Subject
			}
		})
		rec := httptest.NewRecorder()
		guard(inner).ServeHTTP(rec, newSignedRequest(t, key, []string{token.RoleAdmin}))
		if subject != "user-1" {
			t.Errorf("subject = %q, want user-1", subject)
		}
	})
}

func TestRequireRoleDisabled(t *testing.T) {
	// Nil verifier means auth is off; everything passes
	guard := RequireRole(nil, token.RoleSuperAdmin, logger.Nop())

	var called bool
	rec := httptest.NewRecorder()
	guard(okHandler(&called)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || !called {
		t.Errorf("status = %d, called = %v", rec.Code, called)
	}
}
