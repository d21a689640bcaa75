// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"context"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Dial performs the WebSocket handshake with url and returns a running
// Transport. A failed handshake is returned as *HandshakeError and is not
// retried.
func Dial(ctx context.Context, url string, opts ...DialOption) (*Transport, error) {
	o := newDialOptions(opts)

	header := o.header.Clone()
	if o.bearerToken != "" {
		header.Set("Authorization", "Bearer "+o.bearerToken)
	}

	dialer := o.dialer
	if dialer == nil {
		d := *websocket.DefaultDialer
		dialer = &d
	}
	if o.handshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.handshakeTimeout)
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil {
		_ = CleanlyCloseBody(resp.Body)
	}
	if err != nil {
		herr := &HandshakeError{URL: url, Err: err}
		if resp != nil {
			herr.StatusCode = resp.StatusCode
		}
		o.logger.Error("websocket handshake failed", zap.String("url", url), zap.Error(err))
		return nil, herr
	}
	o.logger.Info("websocket handshake completed", zap.String("url", url))
	return newTransport(conn, o), nil
}
