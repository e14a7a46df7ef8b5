package authz

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/portalstack/portal-server/internal/logger"
	"github.com/portalstack/portal-server/internal/rpc"
)

// startAuthzStub runs a fake authorization service speaking the real wire
// patterns and returns its address.
func startAuthzStub(t *testing.T) string {
	t.Helper()

	srv := rpc.NewServer("127.0.0.1:0", logger.Nop())
	srv.Handle("service-visible-role.countByServiceIds", func(_ context.Context, data json.RawMessage) (any, error) {
		var in struct {
			ServiceIDs []string `json:"serviceIds"`
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		counts := map[string]int{}
		for i, id := range in.ServiceIDs {
			counts[id] = i + 1
		}
		return counts, nil
	})
	srv.Handle("service-visible-role.findRolesByServiceId", func(context.Context, json.RawMessage) (any, error) {
		return []map[string]string{{"id": "role-1", "name": "operators"}}, nil
	})
	srv.Handle("service-visible-role.existsByServiceId", func(context.Context, json.RawMessage) (any, error) {
		return true, nil
	})

	go func() {
		if err := srv.Start(context.Background()); err != nil {
			t.Errorf("stub Start returned: %v", err)
		}
	}()
	t.Cleanup(srv.Stop)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if addr := srv.Addr(); addr != "" {
			return addr
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("stub never bound its listener")
	return ""
}

func TestRPCClient(t *testing.T) {
	ctx := context.Background()
	addr := startAuthzStub(t)
	client := NewRPCClient(addr, time.Second, 2*time.Second)

	counts, err := client.CountVisibleRoles(ctx, []string{"svc-1", "svc-2"})
	if err != nil {
		t.Fatalf("CountVisibleRoles failed: %v", err)
	}
	if counts["svc-1"] != 1 || counts["svc-2"] != 2 {
		t.Errorf("counts = %v", counts)
	}

	roles, err := client.ListVisibleRoles(ctx, "svc-1")
	if err != nil {
		t.Fatalf("ListVisibleRoles failed: %v", err)
	}
	if len(roles) != 1 || roles[0].Name != "operators" {
		t.Errorf("roles = %+v", roles)
	}

	exists, err := client.HasAnyVisibleRole(ctx, "svc-1")
	if err != nil {
		t.Fatalf("HasAnyVisibleRole failed: %v", err)
	}
	if !exists {
		t.Error("exists = false, want true")
	}
}

func TestRPCClientUnreachable(t *testing.T) {
	client := NewRPCClient("127.0.0.1:1", 100*time.Millisecond, 300*time.Millisecond)

	if _, err := client.CountVisibleRoles(context.Background(), []string{"svc-1"}); err == nil {
		t.Error("expected error against an unreachable authorization service")
	}
	if _, err := client.HasAnyVisibleRole(context.Background(), "svc-1"); err == nil {
		t.Error("expected error against an unreachable authorization service")
	}
}
