// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// State is the lifecycle stage of a connection. It only moves forward.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// frame is one outbound websocket message.
type frame struct {
	kind int
	data []byte
}

func isControl(kind int) bool {
	return kind == websocket.CloseMessage || kind == websocket.PingMessage || kind == websocket.PongMessage
}

func frameName(kind int) string {
	switch kind {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	case websocket.CloseMessage:
		return "close"
	case websocket.PingMessage:
		return "ping"
	case websocket.PongMessage:
		return "pong"
	default:
		return "unknown"
	}
}

// driver owns the socket. It runs an outbound lane that writes queued frames
// in order and an inbound lane that reads frames and dispatches them to the
// correlator or the registry.
type driver struct {
	conn       *websocket.Conn
	outbox     *queue[frame]
	correlator *correlator
	registry   *registry

	writeTimeout time.Duration
	log          *zap.Logger
	metrics      *Metrics

	state     atomic.Int32
	closeSent atomic.Bool

	done chan struct{}
	err  error // terminal cause, set before done is closed
}

func newDriver(conn *websocket.Conn, c *correlator, r *registry, o *dialOptions) *driver {
	d := &driver{
		conn:         conn,
		outbox:       newQueue[frame](),
		correlator:   c,
		registry:     r,
		writeTimeout: o.writeTimeout,
		log:          o.logger,
		metrics:      o.metrics,
		done:         make(chan struct{}),
	}
	d.state.Store(int32(StateOpen))
	if o.readLimit > 0 {
		conn.SetReadLimit(o.readLimit)
	}

	// Control frames are answered through the outbound lane so the socket
	// keeps a single writer.
	conn.SetPingHandler(func(data string) error {
		d.log.Debug("received ping")
		d.enqueue(frame{kind: websocket.PongMessage, data: []byte(data)})
		return nil
	})
	conn.SetPongHandler(func(string) error {
		d.log.Debug("received pong")
		return nil
	})
	conn.SetCloseHandler(func(code int, text string) error {
		d.log.Info("received close", zap.Int("code", code), zap.String("text", text))
		d.setState(StateClosing)
		d.sendClose(code, text)
		return nil
	})
	return d
}

func (d *driver) State() State { return State(d.state.Load()) }

func (d *driver) setState(next State) {
	for {
		cur := d.state.Load()
		if int32(next) <= cur {
			return
		}
		if d.state.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}

// enqueue hands f to the outbound lane. It reports false once the lane has
// stopped accepting frames.
func (d *driver) enqueue(f frame) bool {
	return d.outbox.push(f)
}

// sendClose queues a close frame unless one was already queued.
func (d *driver) sendClose(code int, text string) bool {
	if !d.closeSent.CompareAndSwap(false, true) {
		return false
	}
	return d.enqueue(frame{kind: websocket.CloseMessage, data: websocket.FormatCloseMessage(code, text)})
}

// beginClose starts a local close: Open -> Closing and a close frame queued.
func (d *driver) beginClose(code int, text string) {
	d.setState(StateClosing)
	d.sendClose(code, text)
}

// run drives both lanes until they end, then tears the connection down.
func (d *driver) run() {
	var g errgroup.Group
	g.Go(func() error {
		err := d.readLoop()
		// the outbound lane drains what is already queued, then stops
		d.outbox.close(ErrClosed)
		return err
	})
	g.Go(func() error {
		err := d.writeLoop()
		if err != nil {
			// unblock the inbound lane
			_ = d.conn.Close()
		}
		return err
	})
	err := g.Wait()
	_ = d.conn.Close()
	d.shutdown(err)
}

func (d *driver) readLoop() error {
	for {
		kind, data, err := d.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				return ce
			}
			return fmt.Errorf("read: %w", err)
		}
		d.metrics.frame("in")

		switch kind {
		case websocket.TextMessage:
			d.dispatch(data)
		default:
			d.log.Warn("dropping unsupported frame", zap.String("kind", frameName(kind)), zap.Int("size", len(data)))
			d.metrics.drop(dropBinary)
		}
	}
}

// dispatch routes one text frame. It never blocks and never fails the lane.
func (d *driver) dispatch(data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		d.log.Warn("dropping undecodable frame", zap.Error(err), zap.ByteString("frame", truncate(data, 256)))
		d.metrics.drop(dropDecode)
		return
	}

	switch env.Kind {
	case KindResponse:
		if !d.correlator.resolve(env.Response) {
			d.metrics.drop(dropUnknownCall)
		}
	case KindNotification:
		n := env.Notification
		d.registry.dispatch(n.Subscription, n.Result)
	case KindCall:
		d.log.Warn("dropping server-initiated call", zap.String("method", env.Call.Method))
		d.metrics.drop(dropServerCall)
	}
}

func (d *driver) writeLoop() error {
	for {
		f, err := d.outbox.pop(context.Background())
		if err != nil {
			return nil
		}
		if err := d.write(f); err != nil {
			if errors.Is(err, websocket.ErrCloseSent) {
				// the peer is only owed its close echo now
				d.log.Debug("dropping frame queued after close", zap.String("kind", frameName(f.kind)))
				continue
			}
			return fmt.Errorf("write %s frame: %w", frameName(f.kind), err)
		}
		d.metrics.frame("out")
	}
}

func (d *driver) write(f frame) error {
	var deadline time.Time
	if d.writeTimeout > 0 {
		deadline = time.Now().Add(d.writeTimeout)
	}
	if isControl(f.kind) {
		return d.conn.WriteControl(f.kind, f.data, deadline)
	}
	if err := d.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return d.conn.WriteMessage(f.kind, f.data)
}

func (d *driver) shutdown(cause error) {
	err := ErrClosed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrClosed, cause)
	}
	d.err = err
	d.setState(StateClosed)
	d.outbox.close(err)
	d.correlator.failAll(err)
	d.registry.closeAll(err)
	d.log.Info("connection closed", zap.NamedError("cause", cause))
	close(d.done)
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
