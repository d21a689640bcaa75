// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	_ Client = (*Transport)(nil)
	_ PubSub = (*Transport)(nil)
)

// Transport multiplexes calls and subscriptions over one WebSocket
// connection. It is safe for concurrent use. Once closed it cannot be
// reopened; dial a new Transport instead.
type Transport struct {
	nextID atomic.Uint64

	codec      Codec
	driver     *driver
	correlator *correlator
	registry   *registry

	closeTimeout time.Duration
	closeOnce    sync.Once
	log          *zap.Logger
	metrics      *Metrics
}

// NewTransport takes ownership of an established connection and starts
// serving it.
func NewTransport(conn *websocket.Conn, opts ...DialOption) *Transport {
	return newTransport(conn, newDialOptions(opts))
}

func newTransport(conn *websocket.Conn, o *dialOptions) *Transport {
	log := o.logger.Named("wsrpc")
	o.logger = log
	c := newCorrelator(log)
	r := newRegistry(log, o.metrics)
	t := &Transport{
		codec:        o.codec,
		driver:       newDriver(conn, c, r, o),
		correlator:   c,
		registry:     r,
		closeTimeout: o.closeTimeout,
		log:          log,
		metrics:      o.metrics,
	}
	go t.driver.run()
	return t
}

// Prepare allocates the next call id and builds the call. It does no I/O.
func (t *Transport) Prepare(method string, params interface{}) (CallID, Call, error) {
	raw, err := encodeParams(t.codec, params)
	if err != nil {
		return 0, Call{}, err
	}
	id := t.nextID.Add(1)
	return id, Call{Version: Version, ID: id, Method: method, Params: raw}, nil
}

// Send issues a call and waits for its result. A JSON-RPC error from the peer
// is returned as *RPCError. If the connection ends first the error wraps
// ErrClosed. Abandoning the wait through ctx deregisters the call, and a late
// response is dropped.
func (t *Transport) Send(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if t.driver.State() != StateOpen {
		return nil, t.closedErr()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, call, err := t.Prepare(method, params)
	if err != nil {
		return nil, err
	}
	data, err := EncodeCall(call)
	if err != nil {
		return nil, fmt.Errorf("encode call: %w", err)
	}
	t.log.Debug("calling", zap.Uint64("id", id), zap.String("method", method))

	p := t.correlator.register(id)
	t.metrics.callStarted()
	if !t.driver.enqueue(frame{kind: websocket.TextMessage, data: data}) {
		t.correlator.forget(p)
		t.metrics.callFinished(outcomeClosed)
		return nil, t.closedErr()
	}

	select {
	case <-ctx.Done():
		t.correlator.forget(p)
		t.metrics.callFinished(outcomeCancelled)
		return nil, ctx.Err()

	case o := <-p.done:
		if o.err != nil {
			t.metrics.callFinished(outcomeClosed)
			return nil, o.err
		}
		if o.resp.Error != nil {
			t.metrics.callFinished(outcomeRPCError)
			return nil, o.resp.Error
		}
		t.metrics.callFinished(outcomeOK)
		if len(o.resp.Result) == 0 {
			return json.RawMessage(jsonNull), nil
		}
		return o.resp.Result, nil
	}
}

// Call issues a call and decodes its result into reply. A nil reply discards
// the result.
func (t *Transport) Call(ctx context.Context, method string, params, reply interface{}) error {
	result, err := t.Send(ctx, method, params)
	if err != nil {
		return err
	}
	if reply == nil {
		return nil
	}
	if err := t.codec.Decode(result, reply); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

// Notify sends a call that expects no response.
func (t *Transport) Notify(ctx context.Context, method string, params interface{}) error {
	if t.driver.State() != StateOpen {
		return t.closedErr()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encodeParams(t.codec, params)
	if err != nil {
		return err
	}
	data, err := encodeNotify(method, raw)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if !t.driver.enqueue(frame{kind: websocket.TextMessage, data: data}) {
		return t.closedErr()
	}
	return nil
}

// Subscribe binds a stream to id, replacing any stream already bound to it.
// The id usually comes from the result of a subscribing call.
func (t *Transport) Subscribe(id SubscriptionID) *Stream {
	return t.registry.subscribe(id)
}

// SubscribeAs is Subscribe with values decoded into T by the transport codec.
func SubscribeAs[T any](t *Transport, id SubscriptionID) *Subscription[T] {
	return &Subscription[T]{stream: t.Subscribe(id), codec: t.codec}
}

// Unsubscribe unbinds id. Its stream ends with ErrUnsubscribed once drained,
// and later notifications for id are dropped. It does not tell the peer; do
// that with a call if the remote API requires it.
func (t *Transport) Unsubscribe(id SubscriptionID) {
	if !t.registry.unsubscribe(id) {
		t.log.Debug("unsubscribe for unknown subscription", zap.String("subscription", string(id)))
	}
}

// Close sends a normal close frame and waits for the peer's echo, dropping
// the connection if it does not arrive within the close timeout. Calls still
// in flight fail with ErrClosed.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		t.log.Info("closing connection")
		t.driver.beginClose(websocket.CloseNormalClosure, "")

		timer := time.NewTimer(t.closeTimeout)
		defer timer.Stop()
		select {
		case <-t.driver.done:
		case <-timer.C:
			t.log.Warn("peer did not answer close, dropping connection", zap.Duration("timeout", t.closeTimeout))
			_ = t.driver.conn.Close()
			<-t.driver.done
		}
	})
	return nil
}

// State reports the connection lifecycle stage.
func (t *Transport) State() State { return t.driver.State() }

// Done is closed once both lanes have ended.
func (t *Transport) Done() <-chan struct{} { return t.driver.done }

// Err returns the terminal cause after Done is closed, and nil before.
func (t *Transport) Err() error {
	select {
	case <-t.driver.done:
		return t.driver.err
	default:
		return nil
	}
}

// Pending reports the number of calls awaiting a response.
func (t *Transport) Pending() int { return t.correlator.len() }

// Subscriptions reports the number of live subscriptions.
func (t *Transport) Subscriptions() int { return t.registry.len() }

func (t *Transport) closedErr() error {
	if err := t.Err(); err != nil {
		return err
	}
	return ErrClosed
}
