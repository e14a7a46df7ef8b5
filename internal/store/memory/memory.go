// Package memory provides an in-memory Store used by tests and single-node
// development setups. Semantics mirror the SQL stores, including the
// partial uniqueness of name among non-deleted records.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/portalstack/portal-server/internal/domain"
	"github.com/portalstack/portal-server/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	services map[string]*domain.Service // ID -> Service
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		services: make(map[string]*domain.Service),
		now:      time.Now,
	}
}

// SetClock overrides the timestamp source. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) FindByID(_ context.Context, id string) (*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok || svc.Deleted() {
		return nil, nil
	}
	return clone(svc), nil
}

func (s *Store) FindByIDs(_ context.Context, ids []string) ([]*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Service, 0, len(ids))
	for _, id := range ids {
		if svc, ok := s.services[id]; ok && !svc.Deleted() {
			out = append(out, clone(svc))
		}
	}
	return out, nil
}

func (s *Store) FindByName(_ context.Context, name string) (*domain.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, svc := range s.services {
		if !svc.Deleted() && svc.Name == name {
			return clone(svc), nil
		}
	}
	return nil, nil
}

func (s *Store) FindMatchingAll(_ context.Context, f domain.Filter) ([]*domain.Service, error) {
	return s.findMatching(f, matchesAll), nil
}

func (s *Store) FindMatchingAny(_ context.Context, f domain.Filter) ([]*domain.Service, error) {
	return s.findMatching(f, matchesAny), nil
}

func (s *Store) findMatching(f domain.Filter, match func(*domain.Service, domain.Filter) bool) []*domain.Service {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Service, 0)
	for _, svc := range s.services {
		if svc.Deleted() {
			continue
		}
		if f.Empty() || match(svc, f) {
			out = append(out, clone(svc))
		}
	}
	return out
}

func matchesAll(svc *domain.Service, f domain.Filter) bool {
	if f.Name != "" && svc.Name != f.Name {
		return false
	}
	if f.Description != "" && svc.Description != f.Description {
		return false
	}
	if f.BaseURL != "" && svc.BaseURL != f.BaseURL {
		return false
	}
	if f.IsVisible != nil && svc.IsVisible != *f.IsVisible {
		return false
	}
	if f.IsVisibleByRole != nil && svc.IsVisibleByRole != *f.IsVisibleByRole {
		return false
	}
	if f.DisplayName != "" && svc.DisplayName != f.DisplayName {
		return false
	}
	if f.IconURL != "" && svc.IconURL != f.IconURL {
		return false
	}
	return true
}

func matchesAny(svc *domain.Service, f domain.Filter) bool {
	if f.Name != "" && svc.Name == f.Name {
		return true
	}
	if f.Description != "" && svc.Description == f.Description {
		return true
	}
	if f.BaseURL != "" && svc.BaseURL == f.BaseURL {
		return true
	}
	if f.IsVisible != nil && svc.IsVisible == *f.IsVisible {
		return true
	}
	if f.IsVisibleByRole != nil && svc.IsVisibleByRole == *f.IsVisibleByRole {
		return true
	}
	if f.DisplayName != "" && svc.DisplayName == f.DisplayName {
		return true
	}
	if f.IconURL != "" && svc.IconURL == f.IconURL {
		return true
	}
	return false
}

func (s *Store) Search(_ context.Context, q store.SearchQuery) (*store.Page, error) {
	q.Normalize()

	s.mu.RLock()
	matched := make([]*domain.Service, 0)
	for _, svc := range s.services {
		if svc.Deleted() {
			continue
		}
		if q.Name != "" && !strings.Contains(svc.Name, q.Name) {
			continue
		}
		if q.Description != "" && !strings.Contains(svc.Description, q.Description) {
			continue
		}
		if q.IsVisible != nil && svc.IsVisible != *q.IsVisible {
			continue
		}
		if q.IsVisibleByRole != nil && svc.IsVisibleByRole != *q.IsVisibleByRole {
			continue
		}
		matched = append(matched, clone(svc))
	}
	s.mu.RUnlock()

	sortServices(matched, q.SortBy, q.SortOrder)

	total := len(matched)
	start := (q.Page - 1) * q.Limit
	if start > total {
		start = total
	}
	end := start + q.Limit
	if end > total {
		end = total
	}

	items := make([]domain.SearchResult, 0, end-start)
	for _, svc := range matched[start:end] {
		items = append(items, domain.SearchResult{Service: *svc})
	}

	return &store.Page{
		Items:    items,
		PageInfo: store.NewPageInfo(q.Page, q.Limit, total),
	}, nil
}

func sortServices(list []*domain.Service, sortBy, sortOrder string) {
	less := func(a, b *domain.Service) bool {
		switch sortBy {
		case store.SortByName:
			return a.Name < b.Name
		case store.SortByUpdatedAt:
			return a.UpdatedAt.Before(b.UpdatedAt)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if sortOrder == store.SortDesc {
			return less(list[j], list[i])
		}
		return less(list[i], list[j])
	})
}

func (s *Store) Save(_ context.Context, svc *domain.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.services {
		if id != svc.ID && !existing.Deleted() && existing.Name == svc.Name {
			return domain.ErrAlreadyExists()
		}
	}

	now := s.now()
	if existing, ok := s.services[svc.ID]; ok {
		svc.CreatedAt = existing.CreatedAt
	} else if svc.CreatedAt.IsZero() {
		svc.CreatedAt = now
	}
	svc.UpdatedAt = now

	s.services[svc.ID] = clone(svc)
	return nil
}

func (s *Store) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	svc, ok := s.services[id]
	if !ok || svc.Deleted() {
		return domain.ErrNotFound()
	}
	now := s.now()
	svc.DeletedAt = &now
	svc.UpdatedAt = now
	return nil
}

func (s *Store) PurgeDeletedBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, svc := range s.services {
		if svc.Deleted() && svc.DeletedAt.Before(cutoff) {
			delete(s.services, id)
			purged++
		}
	}
	return purged, nil
}

func (s *Store) Count(_ context.Context, f domain.Filter) (int, error) {
	return len(s.findMatching(f, matchesAll)), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// RawByID bypasses the deleted filter; used by tests to verify that
// soft-deleted rows persist.
func (s *Store) RawByID(id string) (*domain.Service, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return nil, false
	}
	return clone(svc), true
}

func clone(s *domain.Service) *domain.Service {
	cp := *s
	if s.DeletedAt != nil {
		del := *s.DeletedAt
		cp.DeletedAt = &del
	}
	return &cp
}
