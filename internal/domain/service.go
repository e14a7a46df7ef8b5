package domain

import "time"

// Service is a registered downstream application entry in the portal catalog.
//
// A Service is uniquely identified by its ID (assigned at creation) and its
// Name must be unique among non-deleted records.
type Service struct {
	// ID is the canonical unique identifier, immutable after creation.
	ID string `json:"id"`

	// Name is the short identifier used for duplicate detection.
	Name string `json:"name"`

	// Description is free-form text shown in the admin UI.
	Description string `json:"description,omitempty"`

	// BaseURL is the service's reachable base URL, also used for health probes.
	BaseURL string `json:"baseUrl,omitempty"`

	// IsVisible controls whether the service appears in the general catalog.
	IsVisible bool `json:"isVisible"`

	// IsVisibleByRole additionally gates visibility by role membership.
	IsVisibleByRole bool `json:"isVisibleByRole"`

	// DisplayName is the user-facing name (ex: "Admin Portal").
	DisplayName string `json:"displayName,omitempty"`

	// IconURL points at the icon shown next to the service.
	IconURL string `json:"iconUrl,omitempty"`

	// CreatedAt is set once when the record is first persisted.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is bumped on every mutation.
	UpdatedAt time.Time `json:"updatedAt"`

	// DeletedAt non-nil marks the record soft-deleted. Soft-deleted records
	// are excluded from all normal reads but the row persists.
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
}

// Deleted reports whether the record is soft-deleted.
func (s *Service) Deleted() bool { return s.DeletedAt != nil }

// VisibleRole is a role permitted to see a role-gated service. The role
// schema is owned by the authorization domain; only the fields the portal
// displays are decoded here.
type VisibleRole struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ServiceDetail is a Service enriched with the roles allowed to view it.
// VisibleRoles is best-effort: it is empty when the authorization service
// could not be reached.
type ServiceDetail struct {
	Service
	VisibleRoles []VisibleRole `json:"visibleRoles"`
}

// SearchResult is one row of a paginated catalog search, enriched with the
// number of roles allowed to view the service (0 when enrichment failed).
type SearchResult struct {
	Service
	VisibleRoleCount int `json:"visibleRoleCount"`
}

// Filter is a partial field-equality predicate over Service. Zero-valued
// string fields and nil booleans are ignored.
type Filter struct {
	Name            string `json:"name,omitempty"`
	Description     string `json:"description,omitempty"`
	BaseURL         string `json:"baseUrl,omitempty"`
	IsVisible       *bool  `json:"isVisible,omitempty"`
	IsVisibleByRole *bool  `json:"isVisibleByRole,omitempty"`
	DisplayName     string `json:"displayName,omitempty"`
	IconURL         string `json:"iconUrl,omitempty"`
}

// Empty reports whether no predicate field is set.
func (f Filter) Empty() bool {
	return f.Name == "" && f.Description == "" && f.BaseURL == "" &&
		f.IsVisible == nil && f.IsVisibleByRole == nil &&
		f.DisplayName == "" && f.IconURL == ""
}

// CreateService is the input for Manager.Create. Name is required.
type CreateService struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	BaseURL         string `json:"baseUrl,omitempty"`
	IsVisible       *bool  `json:"isVisible,omitempty"`       // default true
	IsVisibleByRole *bool  `json:"isVisibleByRole,omitempty"` // default false
	DisplayName     string `json:"displayName,omitempty"`
	IconURL         string `json:"iconUrl,omitempty"`
}

// UpdateService is the partial input for Manager.Update. Nil fields are
// left unchanged on the existing record.
type UpdateService struct {
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	BaseURL         *string `json:"baseUrl,omitempty"`
	IsVisible       *bool   `json:"isVisible,omitempty"`
	IsVisibleByRole *bool   `json:"isVisibleByRole,omitempty"`
	DisplayName     *string `json:"displayName,omitempty"`
	IconURL         *string `json:"iconUrl,omitempty"`
}

// Apply copies the provided fields onto s, field by field. Identity and
// timestamp fields are never touched here; the store owns them.
func (u UpdateService) Apply(s *Service) {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
	if u.BaseURL != nil {
		s.BaseURL = *u.BaseURL
	}
	if u.IsVisible != nil {
		s.IsVisible = *u.IsVisible
	}
	if u.IsVisibleByRole != nil {
		s.IsVisibleByRole = *u.IsVisibleByRole
	}
	if u.DisplayName != nil {
		s.DisplayName = *u.DisplayName
	}
	if u.IconURL != nil {
		s.IconURL = *u.IconURL
	}
}

// Stats are aggregate catalog counters served over RPC.
type Stats struct {
	TotalServices   int `json:"totalServices"`
	VisibleServices int `json:"visibleServices"`
	ActiveServices  int `json:"activeServices"`
}
