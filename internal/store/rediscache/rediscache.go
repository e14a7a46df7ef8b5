// Package rediscache decorates a Store with Redis caching for point reads.
//
// Keys:
//   - portal:service:<id>   -> JSON object (FindByID)
//   - portal:service:name:<name> -> JSON object (FindByName)
//
// List and search queries always go to the inner store; caching them would
// require invalidating on every mutation for little gain at catalog sizes.
// Mutations invalidate the affected keys. Cache failures are never
// surfaced: a broken Redis degrades to pass-through.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/portalstack/portal-server/internal/domain"
	"github.com/portalstack/portal-server/internal/store"
)

const (
	keyPrefixService = "portal:service:"
	keyPrefixByName  = "portal:service:name:"

	// DefaultTTL bounds staleness for entries whose invalidation is missed
	// (for example a mutation issued by another replica).
	DefaultTTL = 5 * time.Minute
)

func serviceKey(id string) string   { return keyPrefixService + id }
func serviceByName(n string) string { return keyPrefixByName + n }

type Store struct {
	inner store.Store
	rdb   *redis.Client
	ttl   time.Duration
}

var _ store.Store = (*Store)(nil)

func New(inner store.Store, rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *Store) FindByID(ctx context.Context, id string) (*domain.Service, error) {
	if svc, ok := c.cached(ctx, serviceKey(id)); ok {
		return svc, nil
	}
	svc, err := c.inner.FindByID(ctx, id)
	if err != nil || svc == nil {
		return svc, err
	}
	c.put(ctx, serviceKey(id), svc)
	return svc, nil
}

func (c *Store) FindByName(ctx context.Context, name string) (*domain.Service, error) {
	if svc, ok := c.cached(ctx, serviceByName(name)); ok {
		return svc, nil
	}
	svc, err := c.inner.FindByName(ctx, name)
	if err != nil || svc == nil {
		return svc, err
	}
	c.put(ctx, serviceByName(name), svc)
	return svc, nil
}

func (c *Store) Save(ctx context.Context, svc *domain.Service) error {
	// Fetch first so a rename drops the old name's key too.
	prev, _ := c.inner.FindByID(ctx, svc.ID)
	if err := c.inner.Save(ctx, svc); err != nil {
		return err
	}
	c.invalidate(ctx, svc)
	if prev != nil && prev.Name != svc.Name {
		_ = c.rdb.Del(ctx, serviceByName(prev.Name)).Err()
	}
	return nil
}

func (c *Store) SoftDelete(ctx context.Context, id string) error {
	// Fetch first so the by-name key can be dropped too.
	svc, _ := c.inner.FindByID(ctx, id)
	if err := c.inner.SoftDelete(ctx, id); err != nil {
		return err
	}
	if svc != nil {
		c.invalidate(ctx, svc)
	} else {
		_ = c.rdb.Del(ctx, serviceKey(id)).Err()
	}
	return nil
}

// Pass-throughs.

func (c *Store) FindByIDs(ctx context.Context, ids []string) ([]*domain.Service, error) {
	return c.inner.FindByIDs(ctx, ids)
}

func (c *Store) FindMatchingAll(ctx context.Context, f domain.Filter) ([]*domain.Service, error) {
	return c.inner.FindMatchingAll(ctx, f)
}

func (c *Store) FindMatchingAny(ctx context.Context, f domain.Filter) ([]*domain.Service, error) {
	return c.inner.FindMatchingAny(ctx, f)
}

func (c *Store) Search(ctx context.Context, q store.SearchQuery) (*store.Page, error) {
	return c.inner.Search(ctx, q)
}

func (c *Store) PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return c.inner.PurgeDeletedBefore(ctx, cutoff)
}

func (c *Store) Count(ctx context.Context, f domain.Filter) (int, error) {
	return c.inner.Count(ctx, f)
}

func (c *Store) Ping(ctx context.Context) error { return c.inner.Ping(ctx) }

func (c *Store) Close() error { return c.inner.Close() }

func (c *Store) cached(ctx context.Context, key string) (*domain.Service, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var svc domain.Service
	if err := json.Unmarshal(data, &svc); err != nil {
		return nil, false
	}
	return &svc, true
}

func (c *Store) put(ctx context.Context, key string, svc *domain.Service) {
	data, err := json.Marshal(svc)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, key, data, c.ttl).Err()
}

func (c *Store) invalidate(ctx context.Context, svc *domain.Service) {
	_ = c.rdb.Del(ctx, serviceKey(svc.ID), serviceByName(svc.Name)).Err()
}
