package httpapi

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// streamConn serializes writes to one websocket connection.
type streamConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *streamConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// StreamHub fans booking and driver events out to the websocket connections
// subscribed to each session key.
type StreamHub struct {
	logger *slog.Logger
	mu     sync.RWMutex
	conns  map[string][]*streamConn
}

func NewStreamHub(logger *slog.Logger) *StreamHub {
	return &StreamHub{logger: logger, conns: make(map[string][]*streamConn)}
}

func (h *StreamHub) Add(key string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[key] = append(h.conns[key], &streamConn{conn: conn})
}

// Remove closes the connection and drops it from the key's subscriber list.
func (h *StreamHub) Remove(key string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept := h.conns[key][:0]
	for _, c := range h.conns[key] {
		if c.conn == conn {
			_ = c.conn.Close()
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		delete(h.conns, key)
	} else {
		h.conns[key] = kept
	}
}

// subscribers reports how many connections a key currently has.
func (h *StreamHub) subscribers(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[key])
}

// Send delivers v to every connection on the key, dropping connections whose
// write fails.
func (h *StreamHub) Send(key string, v any) {
	h.mu.RLock()
	conns := h.conns[key]
	h.mu.RUnlock()
	if len(conns) == 0 {
		return
	}

	var dead []*streamConn
	for _, c := range conns {
		if err := c.send(v); err != nil {
			h.logger.Debug("ws send failed, dropping connection", "key", key, "error", err)
			dead = append(dead, c)
		}
	}
	if len(dead) == 0 {
		return
	}

	h.mu.Lock()
	kept := h.conns[key][:0]
	for _, c := range h.conns[key] {
		alive := true
		for _, d := range dead {
			if c == d {
				alive = false
				_ = c.conn.Close()
				break
			}
		}
		if alive {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		delete(h.conns, key)
	} else {
		h.conns[key] = kept
	}
	h.mu.Unlock()
}

// handleWS subscribes the caller to their session's event stream. Browsers
// cannot set headers on websocket requests, so identity comes from query
// parameters: token for logged-in users, guest for anonymous sessions.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	key := ""
	if guest := r.URL.Query().Get("guest"); guest != "" {
		key = "guest:" + guest
	} else if token := r.URL.Query().Get("token"); token != "" {
		claims, err := s.tokens.Parse(token)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		key = claims.Email
	} else {
		key = "addr:" + remoteIP(r)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.hub.Add(key, conn)

	// the stream is write-only, but reading keeps control frames serviced
	// and reaps the connection as soon as the client goes away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.hub.Remove(key, conn)
				return
			}
		}
	}()
}
