package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/portalstack/portal-server/internal/utils"
)

// Client performs request/response calls against a pattern-dispatching RPC
// server. Each call dials its own connection, which keeps the client safe
// for concurrent use without connection-state bookkeeping; call volume on
// the internal channel is low enough that this never shows up in profiles.
type Client struct {
	addr        string
	dialTimeout time.Duration
	callTimeout time.Duration
}

func NewClient(addr string, dialTimeout, callTimeout time.Duration) *Client {
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	if callTimeout <= 0 {
		callTimeout = 3 * time.Second
	}
	return &Client{addr: addr, dialTimeout: dialTimeout, callTimeout: callTimeout}
}

// Invoke sends one request and decodes the result into out (out may be nil
// when the result is irrelevant). The call carries its own timeout on top
// of ctx so a slow collaborator cannot hold the caller past callTimeout.
func (c *Client) Invoke(ctx context.Context, pattern string, payload any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal rpc payload: %w", err)
		}
		data = raw
	}

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer utils.Close(conn)

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req := Request{ID: uuid.NewString(), Pattern: pattern, Data: data}
	if err := json.NewEncoder(conn).Encode(&req); err != nil {
		return fmt.Errorf("write rpc request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("read rpc response: %w", err)
	}
	if resp.ID != req.ID {
		return fmt.Errorf("rpc response id mismatch: got %s want %s", resp.ID, req.ID)
	}
	if resp.Error != nil {
		return &Error{Pattern: pattern, Code: resp.Error.Code, Message: resp.Error.Message}
	}

	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decode rpc result: %w", err)
	}
	return nil
}
