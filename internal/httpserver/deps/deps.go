package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/portalstack/portal-server/internal/logger"
	"github.com/portalstack/portal-server/internal/manager"
	"github.com/portalstack/portal-server/internal/metrics"
	"github.com/portalstack/portal-server/internal/store"
	"github.com/portalstack/portal-server/internal/token"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	Manager *manager.Manager
	Store   store.Store // readiness and diagnostics probes

	// Verifier is nil when PORTAL_JWT_PUBLIC_KEY_FILE is unset; the auth
	// middleware then lets everything through (local dev only).
	Verifier *token.Verifier

	RedisClient *redis.Client // nil when caching is disabled
	AuthzAddr   string
	Metrics     *metrics.Metrics
	TrustProxy  bool
}
