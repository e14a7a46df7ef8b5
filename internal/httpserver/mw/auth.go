package mw

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/portalstack/portal-server/internal/logger"
	"github.com/portalstack/portal-server/internal/token"
)

type claimsKey struct{}

// ClaimsFrom returns the verified token claims attached by RequireRole, or
// nil when auth is disabled.
func ClaimsFrom(ctx context.Context) *token.Claims {
	c, _ := ctx.Value(claimsKey{}).(*token.Claims)
	return c
}

// RequireRole enforces a Bearer access token carrying at least minRole.
// A nil verifier disables enforcement entirely (local dev).
func RequireRole(v *token.Verifier, minRole string, loggerClient logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				next.ServeHTTP(w, r)
				return
			}

			raw := bearerToken(r)
			if raw == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing access token")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				loggerClient.Debug("access token rejected", logger.Error(err))
				writeAuthError(w, http.StatusUnauthorized, "invalid access token")
				return
			}

			if !claims.HasAtLeast(minRole) {
				loggerClient.Warn("insufficient role",
					logger.String("subject", claims.Subject),
					logger.String("required", minRole))
				writeAuthError(w, http.StatusForbidden, "insufficient role")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
