package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	sendQueueSize  = 16
)

var keepaliveFrame = []byte(`{"method":"keepalive","params":{}}`)

type client struct {
	conn   *websocket.Conn
	remote string
	send   chan []byte
	done   chan struct{} // closed when the writer exits
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// hub tracks connected WebSocket clients for broadcasts.
type hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[*client]struct{})}
}

func (h *hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// broadcast queues msg on every client. Clients whose queue is full miss
// the frame rather than stall the sender.
func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			logging.Warn("WebSocket client too slow, dropping frame", zap.String("remote_addr", c.remote))
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		_ = c.conn.Close()
	}
}

// handleWebSocket upgrades the request and serves JSON-RPC frames until the
// peer goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	c := &client{conn: conn, remote: r.RemoteAddr, send: make(chan []byte, sendQueueSize), done: make(chan struct{})}
	s.hub.add(c)
	logging.LogConnection(c.remote, "websocket_opened")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.writeLoop(c)
	}()

	s.readLoop(c)
	s.hub.remove(c)
	_ = conn.Close()
	logging.LogConnection(c.remote, "websocket_closed")
}

func (s *Server) readLoop(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn("WebSocket read failed", zap.String("remote_addr", c.remote), zap.Error(err))
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		logging.LogWebSocketMessage(c.remote, "in", data)

		resp := s.handleRPC(s.ctx, c.remote, data)
		if resp == nil {
			continue
		}
		select {
		case c.send <- resp:
		case <-c.done:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	defer close(c.done)
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logging.Debug("WebSocket write failed", zap.String("remote_addr", c.remote), zap.Error(err))
			_ = c.conn.Close()
			return
		}
		logging.LogWebSocketMessage(c.remote, "out", msg)
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (s *Server) keepaliveLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if s.hub.count() > 0 {
				logging.Debug("Broadcasting keepalive", zap.Int("clients", s.hub.count()))
				s.hub.broadcast(keepaliveFrame)
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// Notify broadcasts a provisioning outcome to every WebSocket client as a
// wifi.event notification. It implements wifi.Notifier.
func (s *Server) Notify(o wifi.Outcome) {
	data, err := json.Marshal(Notification{JSONRPC: "2.0", Method: "wifi.event", Params: o})
	if err != nil {
		logging.Error("Failed to encode outcome", zap.Error(err))
		return
	}
	s.hub.broadcast(data)
}
