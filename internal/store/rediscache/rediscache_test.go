package rediscache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/portalstack/portal-server/internal/domain"
	"github.com/portalstack/portal-server/internal/store/memory"
)

// deadRedis returns a client whose every command fails, standing in for an
// unreachable Redis.
func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         "127.0.0.1:1",
		DialTimeout:  50 * time.Millisecond,
		ReadTimeout:  50 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
		MaxRetries:   -1,
	})
}

func TestDegradesToPassThroughWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	st := New(inner, deadRedis(), time.Minute)

	svc := &domain.Service{ID: "svc-1", Name: "portal"}
	if err := st.Save(ctx, svc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := st.FindByID(ctx, "svc-1")
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got == nil || got.Name != "portal" {
		t.Fatalf("FindByID = %+v", got)
	}

	byName, err := st.FindByName(ctx, "portal")
	if err != nil || byName == nil {
		t.Fatalf("FindByName = (%v, %v)", byName, err)
	}

	if err := st.SoftDelete(ctx, "svc-1"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	got, err = st.FindByID(ctx, "svc-1")
	if err != nil || got != nil {
		t.Errorf("FindByID after delete = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestKeyLayout(t *testing.T) {
	if got := serviceKey("abc"); got != "portal:service:abc" {
		t.Errorf("serviceKey = %q", got)
	}
	if got := serviceByName("portal"); got != "portal:service:name:portal" {
		t.Errorf("serviceByName = %q", got)
	}
}

// recordingHook short-circuits every command before the network layer,
// answering GETs with a miss and recording deleted keys.
type recordingHook struct {
	mu      sync.Mutex
	deleted []string
}

func (h *recordingHook) DialHook(redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("recordingHook: no network")
	}
}

func (h *recordingHook) ProcessHook(redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "get" {
			return redis.Nil
		}
		if cmd.Name() == "del" {
			h.mu.Lock()
			for _, arg := range cmd.Args()[1:] {
				h.deleted = append(h.deleted, fmt.Sprint(arg))
			}
			h.mu.Unlock()
		}
		return nil
	}
}

func (h *recordingHook) ProcessPipelineHook(redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error { return nil }
}

func (h *recordingHook) sawDelete(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, k := range h.deleted {
		if k == key {
			return true
		}
	}
	return false
}

func TestRenameInvalidatesOldNameKey(t *testing.T) {
	ctx := context.Background()
	hook := &recordingHook{}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	rdb.AddHook(hook)
	st := New(memory.New(), rdb, time.Minute)

	if err := st.Save(ctx, &domain.Service{ID: "svc-1", Name: "alpha"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := st.Save(ctx, &domain.Service{ID: "svc-1", Name: "beta"}); err != nil {
		t.Fatalf("rename Save failed: %v", err)
	}

	if !hook.sawDelete(serviceByName("alpha")) {
		t.Error("rename should invalidate the old name key")
	}
	if !hook.sawDelete(serviceByName("beta")) {
		t.Error("rename should invalidate the new name key")
	}
	if !hook.sawDelete(serviceKey("svc-1")) {
		t.Error("rename should invalidate the id key")
	}

	// The freed name must not resolve to the stale record
	got, err := st.FindByName(ctx, "alpha")
	if err != nil || got != nil {
		t.Errorf("FindByName(old name) = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestDefaultTTL(t *testing.T) {
	st := New(memory.New(), deadRedis(), 0)
	if st.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", st.ttl, DefaultTTL)
	}
}
