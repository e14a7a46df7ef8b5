// Package rpc implements the internal TCP transport the platform's backend
// services use to talk to each other: newline-delimited JSON frames carrying
// a message pattern, a correlation id and an arbitrary payload.
//
// A request looks like
//
//	{"id":"<uuid>","pattern":"service.findById","data":{"serviceId":"..."}}
//
// and the matching response carries either a result or an error:
//
//	{"id":"<uuid>","result":{...}}
//	{"id":"<uuid>","error":{"code":"SERVICE_NOT_FOUND","message":"..."}}
package rpc

import (
	"encoding/json"
	"fmt"
)

// Request is one inbound frame.
type Request struct {
	ID      string          `json:"id"`
	Pattern string          `json:"pattern"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response is one outbound frame. Exactly one of Result and Error is set.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorPayload   `json:"error,omitempty"`
}

// ErrorPayload is the wire form of a failed call.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is the client-side view of a remote failure.
type Error struct {
	Pattern string
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc %s failed: %s: %s", e.Pattern, e.Code, e.Message)
}
