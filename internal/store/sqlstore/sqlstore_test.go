package sqlstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/portalstack/portal-server/internal/domain"
	"github.com/portalstack/portal-server/internal/store"
)

func boolPtr(b bool) *bool { return &b }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestSaveAndFindByID(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	svc := &domain.Service{
		ID:        "0b61dd9a-0000-4000-8000-000000000001",
		Name:      "auth-server",
		BaseURL:   "http://auth:8000",
		IsVisible: true,
	}
	if err := st.Save(ctx, svc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if svc.CreatedAt.IsZero() || svc.UpdatedAt.IsZero() {
		t.Error("Save should assign timestamps")
	}

	got, err := st.FindByID(ctx, svc.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if got == nil {
		t.Fatal("FindByID returned nil for a saved service")
	}
	if got.Name != "auth-server" || got.BaseURL != "http://auth:8000" || !got.IsVisible {
		t.Errorf("FindByID = %+v", got)
	}

	// Unknown id is (nil, nil)
	got, err = st.FindByID(ctx, "0b61dd9a-0000-4000-8000-00000000ffff")
	if err != nil || got != nil {
		t.Errorf("FindByID(unknown) = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestSaveUpdatesExisting(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	svc := &domain.Service{ID: "id-1", Name: "portal"}
	if err := st.Save(ctx, svc); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	svc.Description = "updated"
	if err := st.Save(ctx, svc); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	got, err := st.FindByID(ctx, "id-1")
	if err != nil || got == nil {
		t.Fatalf("FindByID failed: (%v, %v)", got, err)
	}
	if got.Description != "updated" {
		t.Errorf("Description = %q, want updated", got.Description)
	}
	if !got.CreatedAt.Equal(svc.CreatedAt) {
		t.Error("CreatedAt must not change on update")
	}
}

func TestUniqueIndexOnActiveName(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	if err := st.Save(ctx, &domain.Service{ID: "id-1", Name: "portal"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The partial unique index rejects a second live row with the same name
	err := st.Save(ctx, &domain.Service{ID: "id-2", Name: "portal"})
	if !domain.IsAlreadyExists(err) {
		t.Errorf("duplicate Save = %v, want already-exists", err)
	}

	// After a soft delete the name is free again
	if err := st.SoftDelete(ctx, "id-1"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if err := st.Save(ctx, &domain.Service{ID: "id-2", Name: "portal"}); err != nil {
		t.Errorf("Save after soft delete failed: %v", err)
	}
}

func TestSoftDeleteSemantics(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	if err := st.Save(ctx, &domain.Service{ID: "id-1", Name: "portal"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := st.SoftDelete(ctx, "id-1"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	// Invisible to reads
	got, err := st.FindByID(ctx, "id-1")
	if err != nil || got != nil {
		t.Errorf("FindByID after delete = (%v, %v), want (nil, nil)", got, err)
	}
	byName, err := st.FindByName(ctx, "portal")
	if err != nil || byName != nil {
		t.Errorf("FindByName after delete = (%v, %v), want (nil, nil)", byName, err)
	}

	// Row still physically present
	var count int
	if err := st.DB().QueryRow(`SELECT COUNT(*) FROM services WHERE id = 'id-1' AND deleted_at IS NOT NULL`).Scan(&count); err != nil {
		t.Fatalf("raw count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("soft-deleted rows in table = %d, want 1", count)
	}

	// Second delete and unknown id are not found
	if err := st.SoftDelete(ctx, "id-1"); !domain.IsNotFound(err) {
		t.Errorf("second SoftDelete = %v, want not-found", err)
	}
	if err := st.SoftDelete(ctx, "nope"); !domain.IsNotFound(err) {
		t.Errorf("SoftDelete(unknown) = %v, want not-found", err)
	}
}

func TestFindByIDsAndMatching(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	services := []*domain.Service{
		{ID: "id-1", Name: "auth", IsVisible: true, DisplayName: "Auth"},
		{ID: "id-2", Name: "portal", IsVisible: true},
		{ID: "id-3", Name: "billing", IsVisible: false, DisplayName: "Auth"},
	}
	for _, svc := range services {
		if err := st.Save(ctx, svc); err != nil {
			t.Fatalf("Save %s failed: %v", svc.ID, err)
		}
	}
	if err := st.SoftDelete(ctx, "id-2"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	byIDs, err := st.FindByIDs(ctx, []string{"id-1", "id-2", "id-3", "id-9"})
	if err != nil {
		t.Fatalf("FindByIDs failed: %v", err)
	}
	if len(byIDs) != 2 {
		t.Errorf("FindByIDs = %d services, want 2", len(byIDs))
	}

	all, err := st.FindMatchingAll(ctx, domain.Filter{IsVisible: boolPtr(true), DisplayName: "Auth"})
	if err != nil {
		t.Fatalf("FindMatchingAll failed: %v", err)
	}
	if len(all) != 1 || all[0].ID != "id-1" {
		t.Errorf("FindMatchingAll = %d results, want only id-1", len(all))
	}

	anyMatch, err := st.FindMatchingAny(ctx, domain.Filter{IsVisible: boolPtr(false), DisplayName: "Auth"})
	if err != nil {
		t.Fatalf("FindMatchingAny failed: %v", err)
	}
	if len(anyMatch) != 2 {
		t.Errorf("FindMatchingAny = %d results, want 2", len(anyMatch))
	}

	// Empty id list short-circuits
	none, err := st.FindByIDs(ctx, nil)
	if err != nil || len(none) != 0 {
		t.Errorf("FindByIDs(nil) = (%v, %v), want empty", none, err)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	for i := 1; i <= 16; i++ {
		svc := &domain.Service{
			ID:        fmt.Sprintf("id-%02d", i),
			Name:      fmt.Sprintf("service-%02d", i),
			IsVisible: i%2 == 0,
			// Spread created_at so the default ordering is deterministic
			CreatedAt: time.Date(2024, 6, 1, 0, 0, i, 0, time.UTC),
		}
		if err := st.Save(ctx, svc); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	// Defaults: page 1, limit 15, created_at DESC
	page, err := st.Search(ctx, store.SearchQuery{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(page.Items) != 15 {
		t.Fatalf("page 1 = %d items, want 15", len(page.Items))
	}
	if page.Items[0].ID != "id-16" {
		t.Errorf("first item = %s, want id-16", page.Items[0].ID)
	}
	wantInfo := store.PageInfo{Page: 1, Limit: 15, TotalItems: 16, TotalPages: 2, HasPreviousPage: false, HasNextPage: true}
	if page.PageInfo != wantInfo {
		t.Errorf("PageInfo = %+v, want %+v", page.PageInfo, wantInfo)
	}

	// Contains filter plus visibility
	page, err = st.Search(ctx, store.SearchQuery{Name: "service-1", IsVisible: boolPtr(true)})
	if err != nil {
		t.Fatalf("filtered Search failed: %v", err)
	}
	// service-10, -12, -14, -16 match "service-1" and are visible
	if page.PageInfo.TotalItems != 4 {
		t.Errorf("TotalItems = %d, want 4", page.PageInfo.TotalItems)
	}

	// Name sort ascending
	page, err = st.Search(ctx, store.SearchQuery{SortBy: store.SortByName, SortOrder: store.SortAsc, Limit: 1})
	if err != nil {
		t.Fatalf("sorted Search failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].Name != "service-01" {
		t.Errorf("sorted first item = %+v, want service-01", page.Items)
	}
}

func TestPurgeDeletedBefore(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	if err := st.Save(ctx, &domain.Service{ID: "id-1", Name: "old"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := st.Save(ctx, &domain.Service{ID: "id-2", Name: "alive"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := st.SoftDelete(ctx, "id-1"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	// Cutoff in the past purges nothing
	purged, err := st.PurgeDeletedBefore(ctx, time.Now().Add(-time.Hour))
	if err != nil || purged != 0 {
		t.Errorf("early purge = (%d, %v), want 0", purged, err)
	}

	// Cutoff in the future removes the soft-deleted row only
	purged, err = st.PurgeDeletedBefore(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PurgeDeletedBefore failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	total, err := st.Count(ctx, domain.Filter{})
	if err != nil || total != 1 {
		t.Errorf("Count after purge = (%d, %v), want 1", total, err)
	}
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)

	if err := st.Save(ctx, &domain.Service{ID: "id-1", Name: "a", IsVisible: true}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := st.Save(ctx, &domain.Service{ID: "id-2", Name: "b", IsVisible: true, BaseURL: "http://b"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	visible, err := st.Count(ctx, domain.Filter{IsVisible: boolPtr(true)})
	if err != nil || visible != 2 {
		t.Errorf("Count(visible) = (%d, %v), want 2", visible, err)
	}
	withURL, err := st.Count(ctx, domain.Filter{BaseURL: "http://b"})
	if err != nil || withURL != 1 {
		t.Errorf("Count(baseURL) = (%d, %v), want 1", withURL, err)
	}
}
