// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"sync"

	"go.uber.org/zap"
)

// outcome is what a pending call completes with.
type outcome struct {
	resp *Response
	err  error
}

// pendingCall is one outstanding call. The pointer doubles as the handle the
// caller uses to deregister it.
type pendingCall struct {
	id   CallID
	done chan outcome // cap 1, written at most once
}

func (p *pendingCall) complete(o outcome) {
	select {
	case p.done <- o:
	default:
	}
}

// correlator maps outstanding call ids to their waiters. It owns no network
// state.
type correlator struct {
	mu      sync.Mutex
	pending map[CallID]*pendingCall

	log *zap.Logger
}

func newCorrelator(log *zap.Logger) *correlator {
	return &correlator{
		pending: make(map[CallID]*pendingCall),
		log:     log,
	}
}

// register stores a waiter for id. A waiter already registered under id is
// completed with ErrSuperseded.
func (c *correlator) register(id CallID) *pendingCall {
	p := &pendingCall{id: id, done: make(chan outcome, 1)}

	c.mu.Lock()
	prev := c.pending[id]
	c.pending[id] = p
	c.mu.Unlock()

	if prev != nil {
		c.log.Warn("replacing already-registered call", zap.Uint64("id", id))
		prev.complete(outcome{err: ErrSuperseded})
	}
	return p
}

// resolve completes and removes the waiter for resp.ID. It reports false when
// no waiter is registered, which is not an error: the call may have been
// abandoned or already resolved.
func (c *correlator) resolve(resp *Response) bool {
	c.mu.Lock()
	p, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Debug("response for unknown call", zap.Uint64("id", resp.ID))
		return false
	}
	p.complete(outcome{resp: resp})
	return true
}

// forget removes p if it is still the waiter registered under its id.
func (c *correlator) forget(p *pendingCall) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[p.id] != p {
		return false
	}
	delete(c.pending, p.id)
	return true
}

// failAll completes every waiter with err and empties the table.
func (c *correlator) failAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[CallID]*pendingCall)
	c.mu.Unlock()

	for _, p := range pending {
		p.complete(outcome{err: err})
	}
}

func (c *correlator) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
