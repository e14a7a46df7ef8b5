package domain

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/portalstack/portal-server/internal/utils"
)

// HealthStatus is the tri-state outcome of a service health check.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
	// HealthUnknown means the service has no BaseURL to probe.
	HealthUnknown HealthStatus = "unknown"
)

// HealthCheck is the result returned by Manager.CheckHealth.
type HealthCheck struct {
	Status    HealthStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
}

// Prober checks whether a base URL is reachable. The manager treats it as
// an external collaborator so tests can stub reachability.
type Prober interface {
	Probe(ctx context.Context, baseURL string) error
}

// HTTPProber probes <baseURL>/healthz with a short per-probe timeout and
// treats any 2xx response as reachable.
type HTTPProber struct {
	Client  *http.Client
	Timeout time.Duration
}

func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPProber{
		Client:  &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

func (p *HTTPProber) Probe(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	url := strings.TrimRight(baseURL, "/") + "/healthz"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode/100 != 2 {
		return &ProbeStatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// ProbeStatusError reports a non-2xx status from the health endpoint.
type ProbeStatusError struct {
	StatusCode int
}

func (e *ProbeStatusError) Error() string {
	return "health probe returned status " + http.StatusText(e.StatusCode)
}
