// Package rpcserver exposes the catalog over the internal TCP message
// channel. Callers are other backend services inside the platform network;
// no end-user authorization happens here, errors are logged and returned
// to the caller as-is.
package rpcserver

import (
	"context"
	"encoding/json"

	"github.com/portalstack/portal-server/internal/domain"
	"github.com/portalstack/portal-server/internal/logger"
	"github.com/portalstack/portal-server/internal/manager"
	"github.com/portalstack/portal-server/internal/metrics"
	"github.com/portalstack/portal-server/internal/rpc"
	"github.com/portalstack/portal-server/internal/store"
)

type Server struct {
	rpc     *rpc.Server
	manager *manager.Manager
	logger  logger.Logger
	metrics *metrics.Metrics
}

type serviceIDPayload struct {
	ServiceID string `json:"serviceId"`
}

type serviceIDsPayload struct {
	ServiceIDs []string `json:"serviceIds"`
}

type namePayload struct {
	Name string `json:"name"`
}

type filterPayload struct {
	Filter domain.Filter `json:"filter"`
}

type createPayload struct {
	CreateInput domain.CreateService `json:"createInput"`
}

type updatePayload struct {
	ServiceID  string               `json:"serviceId"`
	UpdateData domain.UpdateService `json:"updateData"`
}

type successResult struct {
	Success bool `json:"success"`
}

func New(addr string, mgr *manager.Manager, loggerClient logger.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		rpc:     rpc.NewServer(addr, loggerClient),
		manager: mgr,
		logger:  loggerClient,
		metrics: m,
	}
	s.registerHandlers()
	return s
}

// Start serves the RPC listener. Blocks until Stop.
func (s *Server) Start(ctx context.Context) error { return s.rpc.Start(ctx) }

// Stop closes the listener and drains connections.
func (s *Server) Stop() { s.rpc.Stop() }

// Addr returns the bound listen address once Start has bound it.
func (s *Server) Addr() string { return s.rpc.Addr() }

func (s *Server) registerHandlers() {
	s.handle("service.findById", s.findByID)
	s.handle("service.getDetailById", s.getDetailByID)
	s.handle("service.findByName", s.findByName)
	s.handle("service.findByIds", s.findByIDs)
	s.handle("service.findByFilter", s.findByFilter)
	s.handle("service.exists", s.exists)
	s.handle("service.findVisible", s.findVisible)
	s.handle("service.findVisibleByRole", s.findVisibleByRole)
	s.handle("service.search", s.search)
	s.handle("service.create", s.create)
	s.handle("service.update", s.update)
	s.handle("service.delete", s.delete)
	s.handle("service.getStats", s.getStats)
	s.handle("service.checkHealth", s.checkHealth)
}

// handle wraps a handler with per-pattern logging and metrics.
func (s *Server) handle(pattern string, h rpc.Handler) {
	s.rpc.Handle(pattern, func(ctx context.Context, data json.RawMessage) (any, error) {
		result, err := h(ctx, data)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			s.logger.Warn("rpc handler failed",
				logger.String("pattern", pattern),
				logger.Error(err))
		}
		s.metrics.RPCRequests.WithLabelValues(pattern, outcome).Inc()
		return result, err
	})
}

func decode[T any](data json.RawMessage) (T, error) {
	var payload T
	if len(data) == 0 {
		return payload, nil
	}
	err := json.Unmarshal(data, &payload)
	return payload, err
}

func (s *Server) findByID(ctx context.Context, data json.RawMessage) (any, error) {
	p, err := decode[serviceIDPayload](data)
	if err != nil {
		return nil, err
	}
	return s.manager.GetByID(ctx, p.ServiceID)
}

func (s *Server) getDetailByID(ctx context.Context, data json.RawMessage) (any, error) {
	p, err := decode[serviceIDPayload](data)
	if err != nil {
		return nil, err
	}
	return s.manager.GetDetail(ctx, p.ServiceID)
}

func (s *Server) findByName(ctx context.Context, data json.RawMessage) (any, error) {
	p, err := decode[namePayload](data)
	if err != nil {
		return nil, err
	}
	return s.manager.FindByName(ctx, p.Name)
}

func (s *Server) findByIDs(ctx context.Context, data json.RawMessage) (any, error) {
	p, err := decode[serviceIDsPayload](data)
	if err != nil {
		return nil, err
	}
	return s.manager.FindByIDs(ctx, p.ServiceIDs)
}

func (s *Server) findByFilter(ctx context.Context, data json.RawMessage) (any, error) {
	p, err := decode[filterPayload](data)
	if err != nil {
		return nil, err
	}
	return s.manager.FindMatchingAll(ctx, p.Filter)
}

func (s *Server) exists(ctx context.Context, data json.RawMessage) (any, error) {
	p, err := decode[serviceIDPayload](data)
	if err != nil {
		return nil, err
	}
	return s.manager.Exists(ctx, p.ServiceID)
}

func (s *Server) findVisible(ctx context.Context, _ json.RawMessage) (any, error) {
	visible := true
	return s.manager.FindMatchingAll(ctx, domain.Filter{IsVisible: &visible})
}

func (s *Server) findVisibleByRole(ctx context.Context, _ json.RawMessage) (any, error) {
	byRole := true
	return s.manager.FindMatchingAll(ctx, domain.Filter{IsVisibleByRole: &byRole})
}

func (s *Server) search(ctx context.Context, data json.RawMessage) (any, error) {
	q, err := decode[store.SearchQuery](data)
	if err != nil {
		return nil, err
	}
	return s.manager.Search(ctx, q)
}

func (s *Server) create(ctx context.Context, data json.RawMessage) (any, error) {
	p, err := decode[createPayload](data)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Create(ctx, p.CreateInput); err != nil {
		return nil, err
	}
	return successResult{Success: true}, nil
}

func (s *Server) update(ctx context.Context, data json.RawMessage) (any, error) {
	p, err := decode[updatePayload](data)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Update(ctx, p.ServiceID, p.UpdateData); err != nil {
		return nil, err
	}
	return successResult{Success: true}, nil
}

func (s *Server) delete(ctx context.Context, data json.RawMessage) (any, error) {
	p, err := decode[serviceIDPayload](data)
	if err != nil {
		return nil, err
	}
	if err := s.manager.Delete(ctx, p.ServiceID); err != nil {
		return nil, err
	}
	return successResult{Success: true}, nil
}

func (s *Server) getStats(ctx context.Context, _ json.RawMessage) (any, error) {
	return s.manager.Stats(ctx)
}

func (s *Server) checkHealth(ctx context.Context, data json.RawMessage) (any, error) {
	p, err := decode[serviceIDPayload](data)
	if err != nil {
		return nil, err
	}
	return s.manager.CheckHealth(ctx, p.ServiceID)
}
