package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"github.com/portalstack/portal-server/internal/domain"
	"github.com/portalstack/portal-server/internal/logger"
)

// Handler processes one request payload and returns a result to serialize.
type Handler func(ctx context.Context, data json.RawMessage) (any, error)

// Server accepts TCP connections and dispatches frames to pattern handlers.
// Connections are persistent: a caller may pipeline many requests over one
// connection.
type Server struct {
	addr     string
	logger   logger.Logger
	handlers map[string]Handler

	mu       sync.Mutex
	listener net.Listener
	conns    sync.WaitGroup
	closed   bool
}

func NewServer(addr string, loggerClient logger.Logger) *Server {
	return &Server{
		addr:     addr,
		logger:   loggerClient,
		handlers: make(map[string]Handler),
	}
}

// Handle registers a handler for a message pattern. Must be called before
// Start.
func (s *Server) Handle(pattern string, h Handler) {
	s.handlers[pattern] = h
}

// Start listens and serves until Stop is called. Blocks.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Infof("RPC server listening on %s", s.addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("rpc accept failed", logger.Error(err))
			continue
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// Addr returns the bound listen address, or "" before Start has bound it.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and waits for in-flight connections.
func (s *Server) Stop() {
	s.mu.Lock()
	s.closed = true
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		_ = ln.Close()
	}
	s.conns.Wait()
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)

	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			// EOF or a malformed frame; either way the connection is done.
			return
		}

		resp := s.dispatch(ctx, &req)
		if err := enc.Encode(resp); err != nil {
			s.logger.Warn("rpc write failed",
				logger.String("pattern", req.Pattern),
				logger.Error(err))
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	h, ok := s.handlers[req.Pattern]
	if !ok {
		return &Response{ID: req.ID, Error: &ErrorPayload{
			Code:    "UNKNOWN_PATTERN",
			Message: "no handler for pattern " + req.Pattern,
		}}
	}

	result, err := h(ctx, req.Data)
	if err != nil {
		return &Response{ID: req.ID, Error: toErrorPayload(err)}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		s.logger.Error("rpc result marshal failed",
			logger.String("pattern", req.Pattern),
			logger.Error(err))
		return &Response{ID: req.ID, Error: &ErrorPayload{
			Code:    "INTERNAL",
			Message: "failed to serialize result",
		}}
	}
	return &Response{ID: req.ID, Result: raw}
}

func toErrorPayload(err error) *ErrorPayload {
	var de *domain.Error
	if errors.As(err, &de) {
		return &ErrorPayload{Code: string(de.Code), Message: de.Message}
	}
	return &ErrorPayload{Code: "INTERNAL", Message: err.Error()}
}
