// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"encoding/json"
	"fmt"
)

// JSONCodec is a JSON-based codec
type JSONCodec struct{}

func (JSONCodec) Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}

// RawCodec passes pre-encoded JSON through unchanged and falls back to
// encoding/json for everything else.
type RawCodec struct{}

func (RawCodec) Encode(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case json.RawMessage:
		return b, nil
	case []byte:
		if !json.Valid(b) {
			return nil, fmt.Errorf("raw params are not valid JSON")
		}
		return b, nil
	}
	return json.Marshal(v)
}

func (RawCodec) Decode(data []byte, v interface{}) error {
	switch p := v.(type) {
	case *json.RawMessage:
		*p = append((*p)[:0], data...)
		return nil
	case *[]byte:
		*p = append((*p)[:0], data...)
		return nil
	}
	return json.Unmarshal(data, v)
}

// Raw is a codec that passes JSON bytes through unchanged
var Raw Codec = RawCodec{}

// encodeParams encodes params for the wire. Nil params become an empty
// positional list.
func encodeParams(c Codec, params interface{}) (json.RawMessage, error) {
	if params == nil {
		return emptyParams, nil
	}
	b, err := c.Encode(params)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	if len(b) == 0 || string(b) == "null" {
		return emptyParams, nil
	}
	return b, nil
}
