// Package authz talks to the authorization service over the internal RPC
// channel to resolve service -> visible-role assignments.
//
// Every call here is best-effort from the manager's point of view: the
// manager substitutes documented fallbacks when a call fails and only logs
// the failure. The one sensitive case is HasAnyVisibleRole on the delete
// path, where a failure defaults to false and therefore permits deletion;
// see DESIGN.md.
package authz

import (
	"context"
	"time"

	"github.com/portalstack/portal-server/internal/domain"
	"github.com/portalstack/portal-server/internal/rpc"
)

// Client is the manager's view of the authorization service.
type Client interface {
	// CountVisibleRoles returns, per service id, how many roles may view
	// the service. Ids without assignments map to 0.
	CountVisibleRoles(ctx context.Context, serviceIDs []string) (map[string]int, error)

	// ListVisibleRoles returns the roles permitted to view one service.
	ListVisibleRoles(ctx context.Context, serviceID string) ([]domain.VisibleRole, error)

	// HasAnyVisibleRole reports whether any role assignment references the
	// service at all.
	HasAnyVisibleRole(ctx context.Context, serviceID string) (bool, error)
}

// Message patterns owned by the authorization service.
const (
	patternCountRoles = "service-visible-role.countByServiceIds"
	patternListRoles  = "service-visible-role.findRolesByServiceId"
	patternExists     = "service-visible-role.existsByServiceId"
)

// RPCClient implements Client over the internal TCP RPC transport.
type RPCClient struct {
	rpc *rpc.Client
}

var _ Client = (*RPCClient)(nil)

func NewRPCClient(addr string, dialTimeout, callTimeout time.Duration) *RPCClient {
	return &RPCClient{rpc: rpc.NewClient(addr, dialTimeout, callTimeout)}
}

func (c *RPCClient) CountVisibleRoles(ctx context.Context, serviceIDs []string) (map[string]int, error) {
	var counts map[string]int
	err := c.rpc.Invoke(ctx, patternCountRoles, map[string]any{"serviceIds": serviceIDs}, &counts)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = map[string]int{}
	}
	return counts, nil
}

func (c *RPCClient) ListVisibleRoles(ctx context.Context, serviceID string) ([]domain.VisibleRole, error) {
	var roles []domain.VisibleRole
	err := c.rpc.Invoke(ctx, patternListRoles, map[string]any{"serviceId": serviceID}, &roles)
	if err != nil {
		return nil, err
	}
	return roles, nil
}

func (c *RPCClient) HasAnyVisibleRole(ctx context.Context, serviceID string) (bool, error) {
	var exists bool
	err := c.rpc.Invoke(ctx, patternExists, map[string]any{"serviceId": serviceID}, &exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
