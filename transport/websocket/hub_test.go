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
)

type inbound struct {
	connID string
	event  string
	data   string
}

// recordingHandler forwards every callback to channels.
type recordingHandler struct {
	connected    chan string
	received     chan inbound
	disconnected chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		connected:    make(chan string, 8),
		received:     make(chan inbound, 8),
		disconnected: make(chan string, 8),
	}
}

func (h *recordingHandler) Connected(connID string) { h.connected <- connID }

func (h *recordingHandler) Received(connID, event string, data json.RawMessage) {
	h.received <- inbound{connID: connID, event: event, data: string(data)}
}

func (h *recordingHandler) Disconnected(connID string) { h.disconnected <- connID }

func startHub(t *testing.T, origins []string) (*Hub, *recordingHandler, string) {
	t.Helper()
	hub := NewHub(origins)
	handler := newRecordingHandler()
	hub.SetHandler(handler)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return hub, handler, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for handler callback")
	}
	var zero T
	return zero
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil)

	if hub.clients == nil {
		t.Error("Hub clients map is nil")
	}
	if hub.outbound == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels are not initialized")
	}
	if hub.Count() != 0 {
		t.Errorf("Expected no clients, got %d", hub.Count())
	}
}

func TestWebSocketLifecycle(t *testing.T) {
	hub, handler, url := startHub(t, nil)

	conn := dial(t, url)
	id := waitFor(t, handler.connected)
	if id == "" {
		t.Fatal("Expected a connection ID")
	}
	if hub.Count() != 1 {
		t.Errorf("Expected 1 client, got %d", hub.Count())
	}

	conn.Close()
	if gone := waitFor(t, handler.disconnected); gone != id {
		t.Errorf("Expected disconnect for %s, got %s", id, gone)
	}

	// Give some time for unregistration
	time.Sleep(10 * time.Millisecond)
	if hub.Count() != 0 {
		t.Errorf("Expected client to be unregistered, got %d", hub.Count())
	}
}

func TestWebSocketReceive(t *testing.T) {
	_, handler, url := startHub(t, nil)

	conn := dial(t, url)
	id := waitFor(t, handler.connected)

	conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`))
	if err := conn.WriteJSON(map[string]any{"event": "joinGame", "data": map[string]string{"roomId": "ABC123"}}); err != nil {
		t.Fatalf("Failed to write message: %v", err)
	}

	got := waitFor(t, handler.received)
	if got.connID != id || got.event != "joinGame" {
		t.Errorf("Unexpected inbound %+v", got)
	}
	if got.data != `{"roomId":"ABC123"}` {
		t.Errorf("Expected raw data to pass through, got %s", got.data)
	}
}

func TestHubSendAndBroadcast(t *testing.T) {
	hub, handler, url := startHub(t, nil)

	first := dial(t, url)
	firstID := waitFor(t, handler.connected)
	second := dial(t, url)
	waitFor(t, handler.connected)

	hub.Send(firstID, "roomCreated", map[string]string{"roomId": "ABC123"})
	msg := readMessage(t, first)
	if msg.Event != "roomCreated" || string(msg.Data) != `{"roomId":"ABC123"}` {
		t.Errorf("Unexpected message %s %s", msg.Event, msg.Data)
	}

	hub.Broadcast("roomListUpdate", []string{})
	for _, conn := range []*websocket.Conn{first, second} {
		msg := readMessage(t, conn)
		if msg.Event != "roomListUpdate" || string(msg.Data) != `[]` {
			t.Errorf("Unexpected broadcast %s %s", msg.Event, msg.Data)
		}
	}

	// unknown ids are ignored
	hub.Send("nobody", "roomCreated", nil)
	hub.Send(firstID, "unReadyAllPlayers", nil)
	if msg := readMessage(t, first); msg.Event != "unReadyAllPlayers" || msg.Data != nil {
		t.Errorf("Unexpected message %s %s", msg.Event, msg.Data)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"any origin", nil, "https://evil.example", true},
		{"allowed origin", []string{"https://maze.example"}, "https://maze.example", true},
		{"rejected origin", []string{"https://maze.example"}, "https://evil.example", false},
		{"no origin header", []string{"https://maze.example"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := checkOrigin(tt.allowed)(r); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWebSocketRejectedOrigin(t *testing.T) {
	_, _, url := startHub(t, []string{"https://maze.example"})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("Expected the upgrade to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %v", resp)
	}
}
