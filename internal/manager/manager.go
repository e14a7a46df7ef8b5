// Package manager orchestrates the service store and the authorization
// client into the views and mutations both transports expose.
package manager

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/portalstack/portal-server/internal/authz"
	"github.com/portalstack/portal-server/internal/domain"
	"github.com/portalstack/portal-server/internal/logger"
	"github.com/portalstack/portal-server/internal/store"
)

type Manager struct {
	store  store.Store
	authz  authz.Client
	prober domain.Prober
	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

func New(st store.Store, az authz.Client, prober domain.Prober, loggerClient logger.Logger) *Manager {
	return &Manager{
		store:  st,
		authz:  az,
		prober: prober,
		logger: loggerClient,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// SetClock and SetIDGenerator override time and id sources. Test hooks.
func (m *Manager) SetClock(now func() time.Time)    { m.now = now }
func (m *Manager) SetIDGenerator(gen func() string) { m.newID = gen }

// GetByID returns the service or (nil, nil) when absent.
func (m *Manager) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	svc, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, domain.Wrap(domain.CodeFetchError, "failed to fetch service", err)
	}
	return svc, nil
}

// GetByIDOrFail returns the service or a NotFound domain error.
func (m *Manager) GetByIDOrFail(ctx context.Context, id string) (*domain.Service, error) {
	svc, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, domain.ErrNotFound()
	}
	return svc, nil
}

// Search returns one page of catalog results with each item's visible-role
// count merged in. The enrichment is best-effort: when the authorization
// service cannot be reached every count defaults to 0 and the search still
// succeeds.
func (m *Manager) Search(ctx context.Context, q store.SearchQuery) (*store.Page, error) {
	page, err := m.store.Search(ctx, q)
	if err != nil {
		return nil, domain.Wrap(domain.CodeSearchError, "failed to search services", err)
	}
	if len(page.Items) == 0 {
		return page, nil
	}

	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		ids = append(ids, item.ID)
	}

	counts, err := m.authz.CountVisibleRoles(ctx, ids)
	if err != nil {
		m.logger.Warn("visible-role count enrichment failed, defaulting to 0",
			logger.Int("services", len(ids)),
			logger.Error(err))
		return page, nil
	}
	for i := range page.Items {
		page.Items[i].VisibleRoleCount = counts[page.Items[i].ID]
	}
	return page, nil
}

// GetDetail returns the service with its visible roles. The role list is
// best-effort: on authorization failure the detail is returned with an
// empty list.
func (m *Manager) GetDetail(ctx context.Context, id string) (*domain.ServiceDetail, error) {
	svc, err := m.GetByIDOrFail(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &domain.ServiceDetail{Service: *svc, VisibleRoles: []domain.VisibleRole{}}

	roles, err := m.authz.ListVisibleRoles(ctx, id)
	if err != nil {
		m.logger.Warn("visible-role list enrichment failed, returning empty list",
			logger.String("service_id", id),
			logger.Error(err))
		return detail, nil
	}
	if roles != nil {
		detail.VisibleRoles = roles
	}
	return detail, nil
}

// Create persists a new service after checking name uniqueness among
// non-deleted records. The store's unique index is the real guarantee
// against concurrent duplicates; this check gives the friendly error.
func (m *Manager) Create(ctx context.Context, input domain.CreateService) error {
	if input.Name == "" {
		return &domain.Error{Code: domain.CodeCreateError, Message: "service name is required"}
	}

	existing, err := m.store.FindByName(ctx, input.Name)
	if err != nil {
		return domain.Wrap(domain.CodeCreateError, "failed to create service", err)
	}
	if existing != nil {
		return domain.ErrAlreadyExists()
	}

	svc := &domain.Service{
		ID:              m.newID(),
		Name:            input.Name,
		Description:     input.Description,
		BaseURL:         input.BaseURL,
		IsVisible:       true,
		IsVisibleByRole: false,
		DisplayName:     input.DisplayName,
		IconURL:         input.IconURL,
	}
	if input.IsVisible != nil {
		svc.IsVisible = *input.IsVisible
	}
	if input.IsVisibleByRole != nil {
		svc.IsVisibleByRole = *input.IsVisibleByRole
	}

	if err := m.store.Save(ctx, svc); err != nil {
		return domain.Wrap(domain.CodeCreateError, "failed to create service", err)
	}
	m.logger.Info("service created",
		logger.String("service_id", svc.ID),
		logger.String("name", svc.Name))
	return nil
}

// Update applies the provided fields over the existing record. A name
// change re-checks uniqueness, excluding the record itself so a no-op
// rename never collides with itself.
func (m *Manager) Update(ctx context.Context, id string, input domain.UpdateService) error {
	svc, err := m.GetByIDOrFail(ctx, id)
	if err != nil {
		return err
	}

	if input.Name != nil && *input.Name != svc.Name {
		existing, err := m.store.FindByName(ctx, *input.Name)
		if err != nil {
			return domain.Wrap(domain.CodeUpdateError, "failed to update service", err)
		}
		if existing != nil && existing.ID != id {
			return domain.ErrAlreadyExists()
		}
	}

	input.Apply(svc)

	if err := m.store.Save(ctx, svc); err != nil {
		return domain.Wrap(domain.CodeUpdateError, "failed to update service", err)
	}
	m.logger.Info("service updated", logger.String("service_id", id))
	return nil
}

// Delete soft-deletes the service unless the authorization service still
// has visible-role assignments referencing it. An authorization failure
// defaults to "no assignments" so catalog cleanup stays available when the
// authorization service is down.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if _, err := m.GetByIDOrFail(ctx, id); err != nil {
		return err
	}

	hasRoles, err := m.authz.HasAnyVisibleRole(ctx, id)
	if err != nil {
		m.logger.Warn("visible-role existence check failed, permitting deletion",
			logger.String("service_id", id),
			logger.Error(err))
		hasRoles = false
	}
	if hasRoles {
		return domain.ErrDeleteBlocked()
	}

	if err := m.store.SoftDelete(ctx, id); err != nil {
		return domain.Wrap(domain.CodeDeleteError, "failed to delete service", err)
	}
	m.logger.Info("service deleted", logger.String("service_id", id))
	return nil
}

// CheckHealth probes the service's base URL. A service without a BaseURL
// reports unknown rather than unhealthy.
func (m *Manager) CheckHealth(ctx context.Context, id string) (*domain.HealthCheck, error) {
	svc, err := m.GetByIDOrFail(ctx, id)
	if err != nil {
		return nil, err
	}

	check := &domain.HealthCheck{Status: domain.HealthUnknown, Timestamp: m.now()}
	if svc.BaseURL == "" {
		return check, nil
	}

	if err := m.prober.Probe(ctx, svc.BaseURL); err != nil {
		m.logger.Debug("health probe failed",
			logger.String("service_id", id),
			logger.Error(err))
		check.Status = domain.HealthUnhealthy
		return check, nil
	}
	check.Status = domain.HealthHealthy
	return check, nil
}

// FindMatchingAll returns services matching every set filter field.
func (m *Manager) FindMatchingAll(ctx context.Context, f domain.Filter) ([]*domain.Service, error) {
	services, err := m.store.FindMatchingAll(ctx, f)
	if err != nil {
		return nil, domain.Wrap(domain.CodeFetchError, "failed to fetch services", err)
	}
	return services, nil
}

// FindMatchingAny returns services matching at least one set filter field.
func (m *Manager) FindMatchingAny(ctx context.Context, f domain.Filter) ([]*domain.Service, error) {
	services, err := m.store.FindMatchingAny(ctx, f)
	if err != nil {
		return nil, domain.Wrap(domain.CodeFetchError, "failed to fetch services", err)
	}
	return services, nil
}

// FindByIDs performs a batch lookup in a single store round trip.
func (m *Manager) FindByIDs(ctx context.Context, ids []string) ([]*domain.Service, error) {
	services, err := m.store.FindByIDs(ctx, ids)
	if err != nil {
		return nil, domain.Wrap(domain.CodeFetchError, "failed to fetch services", err)
	}
	return services, nil
}

// FindByName returns the non-deleted service with this exact name, or nil.
func (m *Manager) FindByName(ctx context.Context, name string) (*domain.Service, error) {
	svc, err := m.store.FindByName(ctx, name)
	if err != nil {
		return nil, domain.Wrap(domain.CodeFetchError, "failed to fetch service", err)
	}
	return svc, nil
}

// Exists reports whether the service id resolves to a non-deleted record.
func (m *Manager) Exists(ctx context.Context, id string) (bool, error) {
	svc, err := m.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return svc != nil, nil
}

// Stats issues the three independent counts concurrently; the queries are
// read-only and commute, so no ordering concerns arise.
func (m *Manager) Stats(ctx context.Context) (*domain.Stats, error) {
	truthy := true
	var stats domain.Stats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := m.store.Count(gctx, domain.Filter{})
		stats.TotalServices = n
		return err
	})
	g.Go(func() error {
		n, err := m.store.Count(gctx, domain.Filter{IsVisible: &truthy})
		stats.VisibleServices = n
		return err
	})
	g.Go(func() error {
		n, err := m.store.Count(gctx, domain.Filter{IsVisible: &truthy, IsVisibleByRole: &truthy})
		stats.ActiveServices = n
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, domain.Wrap(domain.CodeFetchError, "failed to compute service stats", err)
	}
	return &stats, nil
}
