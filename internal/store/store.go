// Package store defines the persistence contract for the service catalog.
//
// Implementations live in the subpackages: memory (tests and single-node
// dev), sqlstore (Postgres and SQLite) and rediscache (a read-through
// caching decorator over any Store).
package store

import (
	"context"
	"math"
	"time"

	"github.com/portalstack/portal-server/internal/domain"
)

// Sort keys accepted by Search. Anything else falls back to SortByCreatedAt.
const (
	SortByCreatedAt = "created_at"
	SortByUpdatedAt = "updated_at"
	SortByName      = "name"

	SortAsc  = "ASC"
	SortDesc = "DESC"

	DefaultPage  = 1
	DefaultLimit = 15
)

// SearchQuery describes a paginated, filtered catalog search. Name and
// Description are substring ("contains") filters; the booleans are exact
// matches when non-nil.
type SearchQuery struct {
	Name            string `json:"name,omitempty"`
	Description     string `json:"description,omitempty"`
	IsVisible       *bool  `json:"isVisible,omitempty"`
	IsVisibleByRole *bool  `json:"isVisibleByRole,omitempty"`

	Page      int    `json:"page,omitempty"`      // 1-based, default 1
	Limit     int    `json:"limit,omitempty"`     // default 15
	SortBy    string `json:"sortBy,omitempty"`    // default created_at
	SortOrder string `json:"sortOrder,omitempty"` // ASC | DESC, default DESC
}

// Normalize fills in defaults and clamps invalid values in place.
func (q *SearchQuery) Normalize() {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	switch q.SortBy {
	case SortByCreatedAt, SortByUpdatedAt, SortByName:
	default:
		q.SortBy = SortByCreatedAt
	}
	switch q.SortOrder {
	case SortAsc, SortDesc:
	default:
		q.SortOrder = SortDesc
	}
}

// PageInfo is the pagination metadata attached to a search page.
type PageInfo struct {
	Page            int  `json:"page"`
	Limit           int  `json:"limit"`
	TotalItems      int  `json:"totalItems"`
	TotalPages      int  `json:"totalPages"`
	HasPreviousPage bool `json:"hasPreviousPage"`
	HasNextPage     bool `json:"hasNextPage"`
}

// NewPageInfo derives pagination metadata from a normalized query and the
// total match count.
func NewPageInfo(page, limit, total int) PageInfo {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return PageInfo{
		Page:            page,
		Limit:           limit,
		TotalItems:      total,
		TotalPages:      totalPages,
		HasPreviousPage: page > 1,
		HasNextPage:     page < totalPages,
	}
}

// Page is one page of search results.
type Page struct {
	Items    []domain.SearchResult `json:"items"`
	PageInfo PageInfo              `json:"pageInfo"`
}

// Store is the persistence contract for Service records. All reads exclude
// soft-deleted records; rows are only physically removed by
// PurgeDeletedBefore.
type Store interface {
	// FindByID returns the service or (nil, nil) when absent.
	FindByID(ctx context.Context, id string) (*domain.Service, error)

	// FindByIDs performs a batch lookup in a single round trip. Unknown ids
	// are silently skipped.
	FindByIDs(ctx context.Context, ids []string) ([]*domain.Service, error)

	// FindByName returns the non-deleted service with exactly this name, or
	// (nil, nil). Used for uniqueness checks.
	FindByName(ctx context.Context, name string) (*domain.Service, error)

	// FindMatchingAll returns services matching every set filter field. An
	// empty filter returns all non-deleted services.
	FindMatchingAll(ctx context.Context, f domain.Filter) ([]*domain.Service, error)

	// FindMatchingAny returns services matching at least one set filter
	// field. An empty filter returns all non-deleted services.
	FindMatchingAny(ctx context.Context, f domain.Filter) ([]*domain.Service, error)

	// Search returns one page of results plus pagination metadata. Items
	// carry VisibleRoleCount zero; enrichment happens in the manager.
	Search(ctx context.Context, q SearchQuery) (*Page, error)

	// Save inserts or updates the record, assigning CreatedAt/UpdatedAt.
	// A uniqueness violation on name surfaces as domain.ErrAlreadyExists.
	Save(ctx context.Context, s *domain.Service) error

	// SoftDelete sets DeletedAt. Deleting an id that is absent or already
	// soft-deleted returns domain.ErrNotFound.
	SoftDelete(ctx context.Context, id string) error

	// PurgeDeletedBefore physically removes rows soft-deleted before the
	// cutoff and returns how many were removed.
	PurgeDeletedBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Count returns the number of non-deleted services matching the filter.
	Count(ctx context.Context, f domain.Filter) (int, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying resources.
	Close() error
}
