// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// registry routes notifications to the live stream of their subscription.
// It owns no network state.
type registry struct {
	mu      sync.Mutex
	streams map[SubscriptionID]*Stream
	closed  error

	log     *zap.Logger
	metrics *Metrics
}

func newRegistry(log *zap.Logger, m *Metrics) *registry {
	return &registry{
		streams: make(map[SubscriptionID]*Stream),
		log:     log,
		metrics: m,
	}
}

// subscribe binds a fresh stream to id. A stream already bound to id is
// ended with ErrSuperseded and receives nothing dispatched afterward.
// After closeAll the returned stream is already ended.
func (r *registry) subscribe(id SubscriptionID) *Stream {
	s := newStream(id)

	r.mu.Lock()
	if r.closed != nil {
		reason := r.closed
		r.mu.Unlock()
		s.end(reason)
		return s
	}
	prev := r.streams[id]
	r.streams[id] = s
	r.mu.Unlock()

	if prev != nil {
		r.log.Warn("replacing already-registered subscription", zap.String("subscription", string(id)))
		prev.end(ErrSuperseded)
	}
	return s
}

// dispatch appends value to the stream bound to id. It never blocks.
func (r *registry) dispatch(id SubscriptionID, value json.RawMessage) bool {
	r.mu.Lock()
	s := r.streams[id]
	r.mu.Unlock()

	if s == nil || !s.push(value) {
		r.log.Warn("notification for unknown subscription", zap.String("subscription", string(id)))
		r.metrics.drop(dropUnknownSubscription)
		return false
	}
	r.metrics.delivered()
	return true
}

// unsubscribe unbinds id and ends its stream with ErrUnsubscribed.
func (r *registry) unsubscribe(id SubscriptionID) bool {
	r.mu.Lock()
	s := r.streams[id]
	delete(r.streams, id)
	r.mu.Unlock()

	if s == nil {
		return false
	}
	s.end(ErrUnsubscribed)
	return true
}

// closeAll ends every stream with reason. Later subscriptions are born ended.
func (r *registry) closeAll(reason error) {
	r.mu.Lock()
	r.closed = reason
	streams := r.streams
	r.streams = make(map[SubscriptionID]*Stream)
	r.mu.Unlock()

	for _, s := range streams {
		s.end(reason)
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}
