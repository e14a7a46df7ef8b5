package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/portalstack/portal-server/internal/httpserver/deps"
	"github.com/portalstack/portal-server/internal/httpserver/handlers"
)

func init() { Register(registerInfra) }

// Operational endpoints. Unauthenticated; expected to be reachable only on
// the internal network.
func registerInfra(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.Get("/readyz", handlers.Readyz(d))
	r.Get("/infra", handlers.Infra(d))
	r.Method("GET", "/metrics", d.Metrics.Handler())
}
