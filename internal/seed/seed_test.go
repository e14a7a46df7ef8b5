package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/portalstack/portal-server/internal/domain"
	"github.com/portalstack/portal-server/internal/logger"
	"github.com/portalstack/portal-server/internal/manager"
	"github.com/portalstack/portal-server/internal/store/memory"
)

const seedYAML = `services:
  - name: auth-server
    description: single sign on
    baseUrl: http://auth:8000
    displayName: Auth
  - name: hidden-tool
    isVisible: false
  - name: gated-tool
    isVisibleByRole: true
`

type noopAuthz struct{}

func (noopAuthz) CountVisibleRoles(context.Context, []string) (map[string]int, error) {
	return map[string]int{}, nil
}

func (noopAuthz) ListVisibleRoles(context.Context, string) ([]domain.VisibleRole, error) {
	return nil, nil
}

func (noopAuthz) HasAnyVisibleRole(context.Context, string) (bool, error) {
	return false, nil
}

type okProber struct{}

func (okProber) Probe(context.Context, string) error { return nil }

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	mgr := manager.New(memory.New(), noopAuthz{}, okProber{}, logger.Nop())
	path := writeSeedFile(t, seedYAML)

	if err := Apply(ctx, path, mgr, logger.Nop()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	stats, err := mgr.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalServices != 3 {
		t.Fatalf("TotalServices = %d, want 3", stats.TotalServices)
	}

	auth, err := mgr.FindByName(ctx, "auth-server")
	if err != nil || auth == nil {
		t.Fatalf("auth-server not seeded: %v", err)
	}
	if auth.BaseURL != "http://auth:8000" || auth.DisplayName != "Auth" {
		t.Errorf("auth-server = %+v", auth)
	}
	if !auth.IsVisible || auth.IsVisibleByRole {
		t.Errorf("auth-server visibility = (%v, %v), want defaults", auth.IsVisible, auth.IsVisibleByRole)
	}

	hidden, _ := mgr.FindByName(ctx, "hidden-tool")
	if hidden == nil || hidden.IsVisible {
		t.Error("hidden-tool should be seeded invisible")
	}
	gated, _ := mgr.FindByName(ctx, "gated-tool")
	if gated == nil || !gated.IsVisibleByRole {
		t.Error("gated-tool should be seeded role-gated")
	}
}

func TestApplySkipsNonEmptyCatalog(t *testing.T) {
	ctx := context.Background()
	mgr := manager.New(memory.New(), noopAuthz{}, okProber{}, logger.Nop())

	if err := mgr.Create(ctx, domain.CreateService{Name: "existing"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	path := writeSeedFile(t, seedYAML)
	if err := Apply(ctx, path, mgr, logger.Nop()); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	// Nothing was added; restarts never duplicate entries
	stats, _ := mgr.Stats(ctx)
	if stats.TotalServices != 1 {
		t.Errorf("TotalServices = %d, want 1", stats.TotalServices)
	}
}

func TestApplyMissingFile(t *testing.T) {
	mgr := manager.New(memory.New(), noopAuthz{}, okProber{}, logger.Nop())
	if err := Apply(context.Background(), "/does/not/exist.yaml", mgr, logger.Nop()); err == nil {
		t.Error("Apply should fail on a missing file")
	}
}

func TestApplyMalformedYAML(t *testing.T) {
	mgr := manager.New(memory.New(), noopAuthz{}, okProber{}, logger.Nop())
	path := writeSeedFile(t, "services: [not: {valid")
	if err := Apply(context.Background(), path, mgr, logger.Nop()); err == nil {
		t.Error("Apply should fail on malformed yaml")
	}
}

func TestLoaderEntries(t *testing.T) {
	path := writeSeedFile(t, seedYAML)
	file, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(file.Services) != 3 {
		t.Fatalf("entries = %d, want 3", len(file.Services))
	}
	if file.Services[1].IsVisible == nil || *file.Services[1].IsVisible {
		t.Error("hidden-tool isVisible should parse as explicit false")
	}
	// Unset booleans stay nil so the manager applies its own defaults
	if file.Services[0].IsVisible != nil {
		t.Error("auth-server isVisible should stay nil")
	}
}
