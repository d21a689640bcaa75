// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wsrpc multiplexes JSON-RPC 2.0 calls and server-push subscriptions
// over a single WebSocket connection.
//
// # Usage
//
//	t, err := wsrpc.Dial(ctx, "ws://127.0.0.1:1234/rpc/v0",
//	    wsrpc.WithBearerToken(token),
//	    wsrpc.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
//
//	var version struct{ Version string }
//	err = t.Call(ctx, "Filecoin.Version", nil, &version)
//
//	// The subscribing call returns the id the server will push under.
//	var id wsrpc.SubscriptionID
//	err = t.Call(ctx, "Filecoin.SyncIncomingBlocks", nil, &id)
//	sub := wsrpc.SubscribeAs[Block](t, id)
//	for block, err := range sub.All(ctx) {
//	    ...
//	}
//
// # Architecture
//
// The package separates concerns:
//
//   - transport.go: Transport, the caller-facing facade (ids, await, subscribe)
//   - driver.go: the socket owner; outbound and inbound lanes, control frames
//   - correlator.go: outstanding call id -> waiter
//   - registry.go: subscription id -> stream
//   - json.go: envelope encoding and one-shot decoding into a tagged union
//   - dial.go: handshake and bearer authentication
//
// Each inbound text frame is decoded once. Responses complete the waiter
// registered under their id; notifications are appended to the unbounded
// stream of their subscription. Neither path blocks the reader, so a slow
// consumer never stalls other calls. Pings are answered with pongs and a
// peer close is echoed before the connection is torn down.
//
// There is no reconnection. When the connection ends every waiting call and
// every stream fails with ErrClosed, and so does every later call.
package wsrpc
