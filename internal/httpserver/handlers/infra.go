package handlers

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/portalstack/portal-server/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports per-component diagnostics: store, redis cache, and the
// authorization service's RPC endpoint.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"store": checkStore(ctx, d),
			"redis": checkRedis(ctx, d),
			"authz": checkAuthz(d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       overallMode(components),
			Components: components,
		})
	}
}

// overallMode: the store is the only hard dependency; everything else
// degrades.
func overallMode(components map[string]componentStatus) string {
	if !components["store"].OK {
		return "critical"
	}
	if !components["redis"].OK || !components["authz"].OK {
		return "degraded"
	}
	return "nominal"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	if err := d.Store.Ping(ctx); err != nil {
		return componentStatus{OK: false, Impact: "catalog unavailable", Error: err.Error()}
	}
	return componentStatus{OK: true}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisClient == nil {
		return componentStatus{OK: true, Mode: "disabled"}
	}
	if err := d.RedisClient.Ping(ctx).Err(); err != nil {
		return componentStatus{OK: false, Impact: "cache bypassed", Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: "caching"}
}

func checkAuthz(d deps.Deps) componentStatus {
	conn, err := net.DialTimeout("tcp", d.AuthzAddr, 2*time.Second)
	if err != nil {
		return componentStatus{OK: false, Impact: "role enrichment degraded", Error: err.Error()}
	}
	_ = conn.Close()
	return componentStatus{OK: true}
}
