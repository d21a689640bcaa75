// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"encoding/json"
	"testing"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		kind  EnvelopeKind
		check func(t *testing.T, env Envelope)
	}{
		{
			name:  "response",
			frame: `{"jsonrpc":"2.0","id":2,"result":{"height":10}}`,
			kind:  KindResponse,
			check: func(t *testing.T, env Envelope) {
				require.Equal(t, CallID(2), env.Response.ID)
				require.JSONEq(t, `{"height":10}`, string(env.Response.Result))
				require.Nil(t, env.Response.Error)
			},
		},
		{
			name:  "error response",
			frame: `{"jsonrpc":"2.0","id":5,"error":{"code":-32602,"message":"bad params"}}`,
			kind:  KindResponse,
			check: func(t *testing.T, env Envelope) {
				require.Equal(t, CallID(5), env.Response.ID)
				require.Equal(t, json2.E_BAD_PARAMS, env.Response.Error.Code)
				require.Equal(t, "bad params", env.Response.Error.Message)
			},
		},
		{
			name:  "positional notification",
			frame: `{"jsonrpc":"2.0","method":"xrpc.ch.val","params":[3,{"cid":"bafy"}]}`,
			kind:  KindNotification,
			check: func(t *testing.T, env Envelope) {
				require.Equal(t, "xrpc.ch.val", env.Notification.Method)
				require.Equal(t, SubscriptionID("3"), env.Notification.Subscription)
				require.JSONEq(t, `{"cid":"bafy"}`, string(env.Notification.Result))
			},
		},
		{
			name:  "named notification",
			frame: `{"jsonrpc":"2.0","method":"eth_subscription","params":{"subscription":"0x9ce5","result":"0x1"}}`,
			kind:  KindNotification,
			check: func(t *testing.T, env Envelope) {
				require.Equal(t, SubscriptionID("0x9ce5"), env.Notification.Subscription)
				require.JSONEq(t, `"0x1"`, string(env.Notification.Result))
			},
		},
		{
			name:  "server call",
			frame: `{"jsonrpc":"2.0","id":11,"method":"client.Ping","params":[]}`,
			kind:  KindCall,
			check: func(t *testing.T, env Envelope) {
				require.Equal(t, "client.Ping", env.Call.Method)
				require.Equal(t, CallID(11), env.Call.ID)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.frame))
			require.NoError(t, err)
			require.Equal(t, tt.kind, env.Kind)
			tt.check(t, env)
		})
	}
}

func TestDecodeEnvelopeRejects(t *testing.T) {
	frames := map[string]string{
		"not json":            `hello`,
		"empty object":        `{}`,
		"batch":               `[{"jsonrpc":"2.0","id":1,"result":null}]`,
		"string response id":  `{"jsonrpc":"2.0","id":"abc","result":1}`,
		"null id error":       `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`,
		"short params":        `{"jsonrpc":"2.0","method":"xrpc.ch.val","params":[3]}`,
		"scalar params":       `{"jsonrpc":"2.0","method":"xrpc.ch.val","params":3}`,
		"missing params":      `{"jsonrpc":"2.0","method":"xrpc.ch.val"}`,
		"bool subscription":   `{"jsonrpc":"2.0","method":"xrpc.ch.val","params":[true,1]}`,
		"no subscription key": `{"jsonrpc":"2.0","method":"eth_subscription","params":{"result":1}}`,
	}
	for name, frame := range frames {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(frame))
			require.ErrorIs(t, err, ErrInvalidFrame)
		})
	}
}

func TestEncodeCall(t *testing.T) {
	b, err := EncodeCall(Call{ID: 1, Method: "Filecoin.Version"})
	require.NoError(t, err)
	require.JSONEq(t, `{"jsonrpc":"2.0","id":1,"method":"Filecoin.Version","params":[]}`, string(b))

	b, err = EncodeCall(Call{ID: 2, Method: "Filecoin.ChainHead", Params: json.RawMessage(`[{"/":"bafy"}]`)})
	require.NoError(t, err)
	require.JSONEq(t, `{"jsonrpc":"2.0","id":2,"method":"Filecoin.ChainHead","params":[{"/":"bafy"}]}`, string(b))
}

func TestSubscriptionIDJSON(t *testing.T) {
	var id SubscriptionID
	require.NoError(t, json.Unmarshal([]byte(`17`), &id))
	require.Equal(t, SubscriptionID("17"), id)

	require.NoError(t, json.Unmarshal([]byte(`"0xcd0c3e"`), &id))
	require.Equal(t, SubscriptionID("0xcd0c3e"), id)

	require.Error(t, json.Unmarshal([]byte(`""`), &id))
	require.Error(t, json.Unmarshal([]byte(`{}`), &id))

	b, err := json.Marshal(SubscriptionID("17"))
	require.NoError(t, err)
	require.Equal(t, `17`, string(b))

	b, err = json.Marshal(SubscriptionID("0xcd0c3e"))
	require.NoError(t, err)
	require.Equal(t, `"0xcd0c3e"`, string(b))
}

func TestCodecs(t *testing.T) {
	b, err := Raw.Encode(json.RawMessage(`[1,2]`))
	require.NoError(t, err)
	require.Equal(t, `[1,2]`, string(b))

	_, err = Raw.Encode([]byte(`{broken`))
	require.Error(t, err)

	var raw json.RawMessage
	require.NoError(t, Raw.Decode([]byte(`{"a":1}`), &raw))
	require.Equal(t, `{"a":1}`, string(raw))

	params, err := encodeParams(defaultCodec, nil)
	require.NoError(t, err)
	require.Equal(t, `[]`, string(params))

	params, err = encodeParams(defaultCodec, []string{"x"})
	require.NoError(t, err)
	require.Equal(t, `["x"]`, string(params))

	_, err = encodeParams(defaultCodec, make(chan int))
	require.Error(t, err)
}
