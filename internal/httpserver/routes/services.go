package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/portalstack/portal-server/internal/httpserver/deps"
	"github.com/portalstack/portal-server/internal/httpserver/handlers"
	"github.com/portalstack/portal-server/internal/httpserver/mw"
	"github.com/portalstack/portal-server/internal/token"
)

func init() { Register(registerServices) }

// Reads require the admin tier, mutations the super-admin tier, matching
// the platform's global role model.
func registerServices(r chi.Router, d deps.Deps) {
	r.Route("/api/services", func(r chi.Router) {
		read := r.With(mw.RequireRole(d.Verifier, token.RoleAdmin, d.Logger))
		read.Get("/", handlers.SearchServices(d))
		read.Get("/{id}", handlers.ServiceDetail(d))
		read.Get("/{id}/health", handlers.ServiceHealth(d))

		write := r.With(
			mw.RequireRole(d.Verifier, token.RoleSuperAdmin, d.Logger),
			mw.RateLimit(mw.RateLimitConfig{
				Burst:             10,
				RefillPerIPPerMin: 60,
				TrustProxy:        d.TrustProxy,
			}),
		)
		write.Post("/", handlers.CreateService(d))
		write.Patch("/{id}", handlers.UpdateService(d))
		write.Delete("/{id}", handlers.DeleteService(d))
	})
}
