// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"errors"
	"fmt"

	"github.com/gorilla/rpc/v2/json2"
)

var (
	ErrClosed       = errors.New("wsrpc: transport closed")
	ErrHandshake    = errors.New("wsrpc: handshake failed")
	ErrSuperseded   = errors.New("wsrpc: superseded by a newer registration")
	ErrUnsubscribed = errors.New("wsrpc: unsubscribed")
	ErrInvalidFrame = errors.New("wsrpc: invalid envelope")
)

// RPCError is a JSON-RPC 2.0 error object returned by the peer.
type RPCError = json2.Error

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode = json2.ErrorCode

// HandshakeError is returned by Dial when the WebSocket upgrade fails.
type HandshakeError struct {
	URL        string
	StatusCode int // zero if no HTTP response was received
	Err        error
}

func (e *HandshakeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("wsrpc: handshake with %s failed (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("wsrpc: handshake with %s failed: %v", e.URL, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

func (e *HandshakeError) Is(target error) bool { return target == ErrHandshake }
