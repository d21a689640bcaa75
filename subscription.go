// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
)

// SubscriptionID is the server-chosen key carried by notifications. Numeric
// and string ids share one namespace: 7 and "7" name the same subscription.
type SubscriptionID string

// UnmarshalJSON accepts a JSON number or string, so the result of a
// subscribing call can be decoded straight into a SubscriptionID.
func (id *SubscriptionID) UnmarshalJSON(data []byte) error {
	v, err := parseSubscriptionID(data)
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// MarshalJSON writes numeric ids as numbers and everything else as strings,
// so an id can be passed back verbatim in an unsubscribe call.
func (id SubscriptionID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseUint(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func parseSubscriptionID(data []byte) (SubscriptionID, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", fmt.Errorf("empty subscription id")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		if s == "" {
			return "", fmt.Errorf("empty subscription id")
		}
		return SubscriptionID(s), nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return "", fmt.Errorf("subscription id must be a number or string: %s", data)
		}
		return SubscriptionID(n.String()), nil
	}
}

// Stream delivers the raw values pushed for one subscription, in dispatch
// order. It is unbounded: the reader never applies backpressure to the
// connection.
type Stream struct {
	id    SubscriptionID
	queue *queue[json.RawMessage]
}

func newStream(id SubscriptionID) *Stream {
	return &Stream{id: id, queue: newQueue[json.RawMessage]()}
}

// ID returns the subscription id the stream is bound to.
func (s *Stream) ID() SubscriptionID { return s.id }

// Next blocks for the next value. After the stream ends and its buffered
// values are drained it returns ErrUnsubscribed, ErrSuperseded or ErrClosed.
func (s *Stream) Next(ctx context.Context) (json.RawMessage, error) {
	return s.queue.pop(ctx)
}

// Buffered reports how many values are queued but not yet read.
func (s *Stream) Buffered() int { return s.queue.len() }

func (s *Stream) push(v json.RawMessage) bool { return s.queue.push(v) }

func (s *Stream) end(reason error) { s.queue.close(reason) }

// Subscription decodes the values of a Stream into T.
type Subscription[T any] struct {
	stream *Stream
	codec  Codec
}

// ID returns the subscription id.
func (s *Subscription[T]) ID() SubscriptionID { return s.stream.id }

// Next blocks for the next value and decodes it. A decode failure is returned
// as an error but does not end the subscription.
func (s *Subscription[T]) Next(ctx context.Context) (T, error) {
	var v T
	raw, err := s.stream.Next(ctx)
	if err != nil {
		return v, err
	}
	if err := s.codec.Decode(raw, &v); err != nil {
		return v, fmt.Errorf("decode notification for %s: %w", s.stream.id, err)
	}
	return v, nil
}

// All ranges over the decoded values. The sequence ends without an error
// after Unsubscribe; any other terminal condition is yielded once as the
// error of the final pair.
func (s *Subscription[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			v, err := s.Next(ctx)
			if errors.Is(err, ErrUnsubscribed) {
				return
			}
			if !yield(v, err) {
				return
			}
			if err != nil && isTerminal(err) {
				return
			}
		}
	}
}

func isTerminal(err error) bool {
	return errors.Is(err, ErrClosed) ||
		errors.Is(err, ErrSuperseded) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
