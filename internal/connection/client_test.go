package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockHubServer creates a test WebSocket server that completes the hub
// protocol handshake before handing the connection to handler.
func mockHubServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		// Handshake: read the client's protocol request, reply empty.
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Logf("handshake read error: %v", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte("{}\x1e")); err != nil {
			t.Logf("handshake write error: %v", err)
			return
		}

		handler(conn)
	}))

	return server
}

func hubURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testClientConfig(url string) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.URL = url
	cfg.BufferSize = 100
	return cfg
}

func TestClient_Connect(t *testing.T) {
	server := mockHubServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	client := NewClient(testClientConfig(hubURL(server)), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if !client.IsConnected() {
		t.Error("expected IsConnected to return true")
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if client.IsConnected() {
		t.Error("expected IsConnected to return false after Close")
	}
}

func TestClient_HandshakeRejected(t *testing.T) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
		conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unsupported protocol"}`+"\x1e"))
	}))
	defer server.Close()

	client := NewClient(testClientConfig(hubURL(server)), nil)

	if err := client.Connect(context.Background()); err == nil {
		t.Error("expected handshake error")
	}
}

func TestClient_Invoke(t *testing.T) {
	var received []byte
	var mu sync.Mutex

	server := mockHubServer(t, func(conn *websocket.Conn) {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			mu.Lock()
			received = msg
			mu.Unlock()
		}
	})
	defer server.Close()

	client := NewClient(testClientConfig(hubURL(server)), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	if err := client.Invoke(TargetSubscribe, "CON.F.US.MNQ.H25"); err != nil {
		t.Errorf("Invoke failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(received) == 0 || received[len(received)-1] != recordSeparator {
		t.Fatalf("invocation not framed with record separator: %q", received)
	}

	var msg hubMessage
	if err := json.Unmarshal(bytes.TrimSuffix(received, []byte{recordSeparator}), &msg); err != nil {
		t.Fatalf("unmarshal invocation: %v", err)
	}
	if msg.Type != msgTypeInvocation {
		t.Errorf("type %d, want %d", msg.Type, msgTypeInvocation)
	}
	if msg.Target != TargetSubscribe {
		t.Errorf("target %q, want %q", msg.Target, TargetSubscribe)
	}
	if len(msg.Arguments) != 1 || string(msg.Arguments[0]) != `"CON.F.US.MNQ.H25"` {
		t.Errorf("arguments %v", msg.Arguments)
	}
}

func TestClient_Records(t *testing.T) {
	// Two records in one WebSocket frame plus one in its own frame.
	frames := []string{
		`{"type":6}` + "\x1e" + `{"type":1,"target":"GatewayQuote"}` + "\x1e",
		`{"type":1,"target":"GatewayTrade"}` + "\x1e",
	}

	server := mockHubServer(t, func(conn *websocket.Conn) {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testClientConfig(hubURL(server)), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer client.Close()

	var received []string
	timeout := time.After(500 * time.Millisecond)
	for i := 0; i < 3; i++ {
		select {
		case record := <-client.Records():
			received = append(received, string(record.Data))
			if record.ReceivedAt.IsZero() {
				t.Error("ReceivedAt should not be zero")
			}
		case <-timeout:
			t.Fatalf("timeout waiting for records, received %d of 3", len(received))
		}
	}

	want := []string{
		`{"type":6}`,
		`{"type":1,"target":"GatewayQuote"}`,
		`{"type":1,"target":"GatewayTrade"}`,
	}
	for i, w := range want {
		if received[i] != w {
			t.Errorf("record %d: got %q, want %q", i, received[i], w)
		}
	}
}

func TestClient_InvokeNotConnected(t *testing.T) {
	client := NewClient(testClientConfig("ws://localhost:12345"), nil)

	if err := client.Invoke(TargetSubscribe, "X"); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestClient_DoubleClose(t *testing.T) {
	server := mockHubServer(t, func(conn *websocket.Conn) {
		time.Sleep(time.Second)
	})
	defer server.Close()

	client := NewClient(testClientConfig(hubURL(server)), nil)

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestBuildHubURL(t *testing.T) {
	got, err := buildHubURL("wss://rtc.example.com/hubs/market", "tok-123")
	if err != nil {
		t.Fatalf("buildHubURL failed: %v", err)
	}
	if got != "wss://rtc.example.com/hubs/market?access_token=tok-123" {
		t.Errorf("got %q", got)
	}

	// No token leaves the URL untouched.
	got, err = buildHubURL("wss://rtc.example.com/hubs/market", "")
	if err != nil {
		t.Fatalf("buildHubURL failed: %v", err)
	}
	if got != "wss://rtc.example.com/hubs/market" {
		t.Errorf("got %q", got)
	}
}
