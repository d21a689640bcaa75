// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testTimeout = 5 * time.Second

// peer is the server side of a test connection.
type peer struct {
	t      *testing.T
	conn   *websocket.Conn
	header http.Header

	writeMu sync.Mutex
}

// dialPeer starts a WebSocket server, dials it and returns both ends.
func dialPeer(t *testing.T, opts ...DialOption) (*Transport, *peer) {
	t.Helper()

	peers := make(chan *peer, 1)
	var upgrader websocket.Upgrader
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		peers <- &peer{t: t, conn: conn, header: r.Header.Clone()}
	}))
	t.Cleanup(srv.Close)

	opts = append([]DialOption{
		WithLogger(zaptest.NewLogger(t)),
		WithCloseTimeout(time.Second),
	}, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	tr, err := Dial(ctx, wsURL(srv), opts...)
	require.NoError(t, err)

	var p *peer
	select {
	case p = <-peers:
	case <-ctx.Done():
		t.Fatal("server never saw the connection")
	}
	t.Cleanup(func() {
		_ = p.conn.Close()
		_ = tr.Close()
	})
	return tr, p
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// readCall reads the next text frame and decodes it as a call.
func (p *peer) readCall() Call {
	p.t.Helper()
	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(testTimeout)))
	kind, data, err := p.conn.ReadMessage()
	require.NoError(p.t, err)
	require.Equal(p.t, websocket.TextMessage, kind)

	var c Call
	require.NoError(p.t, json.Unmarshal(data, &c))
	return c
}

func (p *peer) writeText(s string) {
	p.t.Helper()
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	require.NoError(p.t, p.conn.WriteMessage(websocket.TextMessage, []byte(s)))
}

func (p *peer) writeJSON(v interface{}) {
	p.t.Helper()
	b, err := json.Marshal(v)
	require.NoError(p.t, err)
	p.writeText(string(b))
}

func (p *peer) respond(id CallID, result interface{}) {
	p.t.Helper()
	p.writeJSON(map[string]interface{}{"jsonrpc": "2.0", "id": id, "result": result})
}

func (p *peer) respondError(id CallID, code ErrorCode, message string) {
	p.t.Helper()
	p.writeJSON(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   map[string]interface{}{"code": code, "message": message},
	})
}

// push sends a notification in the positional [subscription, value] form.
func (p *peer) push(sub interface{}, value interface{}) {
	p.t.Helper()
	p.writeJSON(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "xrpc.ch.val",
		"params":  []interface{}{sub, value},
	})
}

// serve answers every call with handle(call) until the connection ends. It
// does not use require, since it runs off the test goroutine.
func (p *peer) serve(handle func(Call) interface{}) <-chan error {
	done := make(chan error, 1)
	go func() {
		for {
			_, data, err := p.conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			var c Call
			if err := json.Unmarshal(data, &c); err != nil {
				done <- err
				return
			}
			if c.Method == "" || c.ID == 0 {
				continue
			}
			b, err := json.Marshal(map[string]interface{}{"jsonrpc": "2.0", "id": c.ID, "result": handle(c)})
			if err != nil {
				done <- err
				return
			}
			p.writeMu.Lock()
			err = p.conn.WriteMessage(websocket.TextMessage, b)
			p.writeMu.Unlock()
			if err != nil {
				done <- err
				return
			}
		}
	}()
	return done
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}
