package httpapi

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/naijago/internal/config"
	"github.com/example/naijago/internal/logging"
)

func newWSServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := config.ServerConfig{
		JWTSecret:           "test-secret",
		TokenTTL:            time.Hour,
		RideTick:            time.Hour,
		CourierTick:         time.Hour,
		DriverSimTick:       time.Hour,
		DriverRequestTTL:    30 * time.Second,
		DriverRequestChance: 0.4,
	}
	s, err := NewServer(cfg, logging.NewLogger("error"))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { _ = s.Close() })
	return s, ts
}

func TestStreamDeliversEvents(t *testing.T) {
	s, ts := newWSServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?guest=w1"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// registration happens just after the handshake completes
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.subscribers("guest:w1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(time.Millisecond)
	}

	s.hub.Send("guest:w1", map[string]any{"type": "results_ready"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got map[string]any
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got["type"] != "results_ready" {
		t.Fatalf("got event %v, want results_ready", got)
	}
}

func TestClientCloseReapsConnection(t *testing.T) {
	s, ts := newWSServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?guest=w2"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.hub.subscribers("guest:w2") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(time.Millisecond)
	}

	_ = conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.hub.subscribers("guest:w2") == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("closed connection was not reaped from the hub")
}
