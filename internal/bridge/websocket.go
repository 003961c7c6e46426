package bridge

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/switcher/internal/logging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// Messages queued per subscriber before it is considered slow
	sendBuffer = 64
)

// client is one WebSocket subscriber
type client struct {
	conn *websocket.Conn
	addr string
	send chan []byte
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	LogHTTPRequestDetails(r, r.RemoteAddr)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		logging.Error("Invalid WebSocket upgrade request",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	logging.LogConnection(r.RemoteAddr, "websocket_upgraded")

	s.register(&client{conn: conn, addr: r.RemoteAddr})
}

// register queues the device snapshot and starts the pumps. After
// Shutdown the connection is closed instead.
func (s *Server) register(c *client) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		logging.Info("Rejecting subscriber after shutdown", zap.String("remote_addr", c.addr))
		_ = c.conn.Close()
		return
	}
	c.send = make(chan []byte, sendBuffer+len(s.devices))
	for _, msg := range s.devices {
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		c.send <- data
	}
	s.clients[c] = struct{}{}
	s.wg.Add(2)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.writePump(c)
	}()
	go func() {
		defer s.wg.Done()
		s.readPump(c)
	}()
}

// removeLocked closes the send channel of c. The write pump then sends a
// close frame and closes the connection. s.mu must be held.
func (s *Server) removeLocked(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	s.removeLocked(c)
	s.mu.Unlock()
}

// readPump consumes control frames. Subscribers have nothing to say, so
// data frames are only logged.
func (s *Server) readPump(c *client) {
	defer func() {
		s.unregister(c)
		_ = c.conn.Close()
		logging.LogConnection(c.addr, "websocket_closed")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Info("Connection closed or error reading frame",
					zap.String("remote_addr", c.addr),
					zap.Error(err),
				)
			}
			return
		}
		logging.LogWebSocketMessage(c.addr, "received", messageType, data)
	}
}

// writePump is the only writer of c.conn
func (s *Server) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "bridge closing"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debug("Failed to write to subscriber",
					zap.String("remote_addr", c.addr),
					zap.Error(err),
				)
				return
			}
			logging.LogWebSocketMessage(c.addr, "sent", websocket.TextMessage, data)

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
