package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orrerysim/orrery/internal/core/protocol"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func echoHandler(_ context.Context, req *protocol.Request) *protocol.Response {
	switch req.Cmd {
	case protocol.CmdPing:
		return protocol.Success(protocol.PingResult{Response: "pong broker"})
	default:
		return protocol.InvalidCommand(req.Cmd)
	}
}

// startGateway upgrades every request and serves the command loop on it.
// The server side connection is published on the returned channel.
func startGateway(t *testing.T) (string, <-chan *Connection) {
	t.Helper()

	cfg := protocol.DefaultConfig()
	cfg.ReadTimeout = 5 * time.Second
	cfg.WriteTimeout = 5 * time.Second

	conns := make(chan *Connection, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn := NewConnection(ws, cfg)
		conns <- conn
		conn.Serve(r.Context(), echoHandler)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), conns
}

func dialGateway(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func roundtrip(t *testing.T, ws *websocket.Conn, frame string) protocol.Response {
	t.Helper()

	if err := ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var resp protocol.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return resp
}

func TestServeLoop(t *testing.T) {
	url, conns := startGateway(t)
	ws := dialGateway(t, url)
	serverConn := <-conns

	resp := roundtrip(t, ws, `{"cmd":"ping","data":{}}`)
	if !resp.OK {
		t.Fatalf("ping refused: %s", resp.Msg)
	}
	var result protocol.PingResult
	if err := json.Unmarshal(resp.Data, &result); err != nil || result.Response != "pong broker" {
		t.Fatalf("ping result = %s, %v", resp.Data, err)
	}

	// A corrupt frame is answered, not fatal for the session.
	resp = roundtrip(t, ws, `{"cmd": blurb}`)
	if resp.OK || resp.Msg != protocol.MsgDecodeError {
		t.Fatalf("corrupt frame reply = %+v", resp)
	}

	resp = roundtrip(t, ws, `{"cmd":"blub","data":{}}`)
	if resp.OK || resp.Msg != "Invalid command <blub>" {
		t.Fatalf("unknown command reply = %+v", resp)
	}

	// The session survived all three exchanges.
	resp = roundtrip(t, ws, `{"cmd":"ping","data":{}}`)
	if !resp.OK {
		t.Fatalf("ping after errors refused: %s", resp.Msg)
	}

	stats := serverConn.Stats()
	if stats.MessagesReceived != 4 || stats.MessagesSent != 4 {
		t.Errorf("stats = %+v, want 4 in and 4 out", stats)
	}
}

func TestBinaryFrameClosesSession(t *testing.T) {
	url, conns := startGateway(t)
	ws := dialGateway(t, url)
	serverConn := <-conns

	if err := ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The gateway speaks JSON over text frames only, a binary frame ends
	// the session.
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Fatal("expected close after binary frame")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !serverConn.IsClosed() {
		if time.Now().After(deadline) {
			t.Fatal("server connection never closed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCloseCallbackAndMetadata(t *testing.T) {
	url, conns := startGateway(t)
	ws := dialGateway(t, url)
	serverConn := <-conns

	serverConn.SetMetadata("client", "console")
	if v, ok := serverConn.GetMetadata("client"); !ok || v != "console" {
		t.Errorf("metadata = %v, %v", v, ok)
	}
	if len(serverConn.Metadata()) != 1 {
		t.Errorf("metadata copy = %v", serverConn.Metadata())
	}

	closed := make(chan string, 1)
	serverConn.OnClose(func(reason string) { closed <- reason })

	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
	_ = ws.Close()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close callback never fired")
	}
	if serverConn.IsAlive() {
		t.Error("connection still reports alive")
	}
}
