// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is the call surface of a transport.
// Application code should depend on this interface.
type Client interface {
	// Call makes a call and decodes its result into reply
	Call(ctx context.Context, method string, params, reply interface{}) error

	// Send makes a call and returns the undecoded result
	Send(ctx context.Context, method string, params interface{}) (json.RawMessage, error)

	// Notify sends a one-way message (no response expected)
	Notify(ctx context.Context, method string, params interface{}) error

	// Close closes the connection
	Close() error
}

// PubSub is the subscription surface of a transport.
type PubSub interface {
	Subscribe(id SubscriptionID) *Stream
	Unsubscribe(id SubscriptionID)
}

// Codec encodes call params and decodes results and notification values
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, v interface{}) error
}

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultCloseTimeout     = 5 * time.Second
)

// DialOption configures client connections
type DialOption func(*dialOptions)

type dialOptions struct {
	codec            Codec
	bearerToken      string
	header           http.Header
	dialer           *websocket.Dialer
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	closeTimeout     time.Duration
	readLimit        int64
	logger           *zap.Logger
	metrics          *Metrics
}

func newDialOptions(opts []DialOption) *dialOptions {
	o := &dialOptions{
		codec:            defaultCodec,
		header:           make(http.Header),
		handshakeTimeout: defaultHandshakeTimeout,
		writeTimeout:     defaultWriteTimeout,
		closeTimeout:     defaultCloseTimeout,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCodec sets a custom codec
func WithCodec(c Codec) DialOption {
	return func(o *dialOptions) {
		if c != nil {
			o.codec = c
		}
	}
}

// WithBearerToken sends "Authorization: Bearer <token>" with the handshake
func WithBearerToken(token string) DialOption {
	return func(o *dialOptions) { o.bearerToken = token }
}

// WithHeader adds a header to the handshake request
func WithHeader(key, value string) DialOption {
	return func(o *dialOptions) { o.header.Add(key, value) }
}

// WithDialer replaces the default websocket dialer
func WithDialer(d *websocket.Dialer) DialOption {
	return func(o *dialOptions) { o.dialer = d }
}

// WithHandshakeTimeout bounds the opening handshake
func WithHandshakeTimeout(d time.Duration) DialOption {
	return func(o *dialOptions) { o.handshakeTimeout = d }
}

// WithWriteTimeout bounds every frame write
func WithWriteTimeout(d time.Duration) DialOption {
	return func(o *dialOptions) { o.writeTimeout = d }
}

// WithCloseTimeout bounds how long Close waits for the peer's close echo
func WithCloseTimeout(d time.Duration) DialOption {
	return func(o *dialOptions) { o.closeTimeout = d }
}

// WithReadLimit caps the size of inbound messages in bytes
func WithReadLimit(n int64) DialOption {
	return func(o *dialOptions) { o.readLimit = n }
}

// WithLogger sets the logger; the default discards everything
func WithLogger(l *zap.Logger) DialOption {
	return func(o *dialOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records transport metrics into m
func WithMetrics(m *Metrics) DialOption {
	return func(o *dialOptions) { o.metrics = m }
}
