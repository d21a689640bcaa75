// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Version is the JSON-RPC protocol version carried by every envelope.
const Version = "2.0"

// CallID correlates an outgoing call with its response.
type CallID = uint64

// EnvelopeKind tags the shape of a decoded Envelope.
type EnvelopeKind uint8

const (
	KindCall EnvelopeKind = iota + 1
	KindResponse
	KindNotification
)

func (k EnvelopeKind) String() string {
	switch k {
	case KindCall:
		return "call"
	case KindResponse:
		return "response"
	case KindNotification:
		return "notification"
	default:
		return "unknown"
	}
}

// Call is an outgoing method call.
type Call struct {
	Version string          `json:"jsonrpc"`
	ID      CallID          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response answers the Call with the same ID. Exactly one of Result and Error
// is meaningful; a nil Error with an empty Result means a null result.
type Response struct {
	ID     CallID
	Result json.RawMessage
	Error  *RPCError
}

// Notification is a server push for a subscription. It carries no CallID.
type Notification struct {
	Method       string
	Subscription SubscriptionID
	Result       json.RawMessage
}

// Envelope is the tagged union of wire message shapes. Exactly one of Call,
// Response and Notification is set, as indicated by Kind.
type Envelope struct {
	Kind         EnvelopeKind
	Call         *Call
	Response     *Response
	Notification *Notification
}

// notifyMessage is an outgoing call that expects no response.
type notifyMessage struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type rawEnvelope struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// EncodeCall returns the wire form of c.
func EncodeCall(c Call) ([]byte, error) {
	if c.Version == "" {
		c.Version = Version
	}
	if len(c.Params) == 0 {
		c.Params = emptyParams
	}
	return json.Marshal(c)
}

func encodeNotify(method string, params json.RawMessage) ([]byte, error) {
	if len(params) == 0 {
		params = emptyParams
	}
	return json.Marshal(notifyMessage{Version: Version, Method: method, Params: params})
}

var emptyParams = json.RawMessage("[]")

// DecodeEnvelope decodes one text frame. It classifies the message once:
// a method with an id is a Call, a method without an id is a Notification,
// and an id without a method is a Response.
func DecodeEnvelope(data []byte) (Envelope, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return Envelope{}, fmt.Errorf("%w: batch messages are not supported", ErrInvalidFrame)
	}

	var raw rawEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	hasID := len(raw.ID) > 0 && !bytes.Equal(raw.ID, jsonNull)

	switch {
	case raw.Method != "" && hasID:
		call := &Call{Version: Version, Method: raw.Method, Params: raw.Params}
		// server-initiated ids need not be numeric
		_ = json.Unmarshal(raw.ID, &call.ID)
		return Envelope{Kind: KindCall, Call: call}, nil

	case raw.Method != "":
		sub, result, err := parseNotificationParams(raw.Params)
		if err != nil {
			return Envelope{}, fmt.Errorf("%w: notification %q: %v", ErrInvalidFrame, raw.Method, err)
		}
		return Envelope{Kind: KindNotification, Notification: &Notification{
			Method:       raw.Method,
			Subscription: sub,
			Result:       result,
		}}, nil

	case hasID:
		var id CallID
		if err := json.Unmarshal(raw.ID, &id); err != nil {
			return Envelope{}, fmt.Errorf("%w: response id %s: %v", ErrInvalidFrame, raw.ID, err)
		}
		return Envelope{Kind: KindResponse, Response: &Response{
			ID:     id,
			Result: raw.Result,
			Error:  raw.Error,
		}}, nil

	default:
		if raw.Error != nil {
			return Envelope{}, fmt.Errorf("%w: uncorrelated error %d: %s", ErrInvalidFrame, raw.Error.Code, raw.Error.Message)
		}
		return Envelope{}, fmt.Errorf("%w: neither id nor method present", ErrInvalidFrame)
	}
}

var jsonNull = []byte("null")

// parseNotificationParams accepts the positional form [subscription, value]
// and the named form {"subscription": id, "result": value}.
func parseNotificationParams(params json.RawMessage) (SubscriptionID, json.RawMessage, error) {
	params = bytes.TrimSpace(params)
	if len(params) == 0 {
		return "", nil, fmt.Errorf("missing params")
	}

	switch params[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(params, &items); err != nil {
			return "", nil, err
		}
		if len(items) < 2 {
			return "", nil, fmt.Errorf("expected [subscription, value], got %d params", len(items))
		}
		id, err := parseSubscriptionID(items[0])
		if err != nil {
			return "", nil, err
		}
		return id, items[1], nil

	case '{':
		var named struct {
			Subscription json.RawMessage `json:"subscription"`
			Result       json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(params, &named); err != nil {
			return "", nil, err
		}
		if len(named.Subscription) == 0 {
			return "", nil, fmt.Errorf("missing subscription field")
		}
		id, err := parseSubscriptionID(named.Subscription)
		if err != nil {
			return "", nil, err
		}
		result := named.Result
		if len(result) == 0 {
			result = json.RawMessage(jsonNull)
		}
		return id, result, nil

	default:
		return "", nil, fmt.Errorf("params must be an array or object")
	}
}

// CleanlyCloseBody drains and closes an HTTP response body so the underlying
// connection can be reused.
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}
