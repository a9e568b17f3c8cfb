package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/alphadeck/papertrade/internal/domain"
	"github.com/alphadeck/papertrade/internal/relay"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// handshakeWait bounds how long a fresh connection may sit silent
	// before sending its handshake.
	handshakeWait = 10 * time.Second

	// maxMessageSize is the maximum size of an incoming message.
	maxMessageSize = 4096

	// sendBufferSize is the channel buffer for outgoing messages per client.
	sendBufferSize = 256
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins. In production, restrict this to known origins.
		return true
	},
}

// client represents a single WebSocket connection after a completed
// handshake.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	id         string
	clientType string
	userID     string
}

// Hub manages connected realtime clients. Each connection's subscribe
// messages drive the shared instrument registry, and the relay pushes one
// batched quote update per tick back through Deliver.
type Hub struct {
	registry *relay.Registry
	logger   *slog.Logger

	mu         sync.RWMutex
	clients    map[string]*client
	register   chan *client
	unregister chan *client
	done       chan struct{}
}

// NewHub creates a Hub bound to the given subscription registry.
func NewHub(registry *relay.Registry, logger *slog.Logger) *Hub {
	return &Hub{
		registry:   registry,
		logger:     logger,
		clients:    make(map[string]*client),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main event loop. It handles client registration
// and unregistration and exits when the context is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			// Closing done first unblocks any connection goroutine stuck
			// on a register/unregister send.
			close(h.done)
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
				h.registry.Unsubscribe(id)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected",
				slog.String("conn_id", c.id),
				slog.String("client_type", c.clientType),
				slog.String("user_id", c.userID),
				slog.Int("total_clients", total),
			)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.registry.Unsubscribe(c.id)
			h.logger.Info("ws: client disconnected",
				slog.String("conn_id", c.id),
				slog.Int("total_clients", total),
			)
		}
	}
}

// Deliver sends a quote update batch to one connection. Called by the
// relay on every tick. Slow clients have the batch dropped rather than
// stalling delivery to everyone else; the next tick carries fresh data
// anyway.
func (h *Hub) Deliver(connID string, batch domain.QuoteUpdateBatch) {
	data, err := json.Marshal(batch)
	if err != nil {
		h.logger.Error("ws: marshal quote update", slog.String("error", err.Error()))
		return
	}

	// The send channel is only closed under the write lock, together with
	// the map delete. Holding the read lock across lookup and send means a
	// concurrent disconnect cannot close the channel mid-delivery.
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connID]
	if !ok {
		return
	}

	select {
	case c.send <- data:
	default:
		h.logger.Warn("ws: dropping quote update for slow client",
			slog.String("conn_id", connID),
		)
	}
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS upgrades an HTTP request to a WebSocket connection, waits for
// the handshake message, and registers the client with the hub.
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	conn.SetReadLimit(maxMessageSize)

	hs, err := readHandshake(conn)
	if err != nil {
		h.logger.Warn("ws: handshake failed", slog.String("error", err.Error()))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "handshake required"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	c := &client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		id:         uuid.NewString(),
		clientType: hs.ClientType,
		userID:     hs.UserID,
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

// readHandshake waits for and parses the first client message.
func readHandshake(conn *websocket.Conn) (domain.Handshake, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeWait))

	var hs domain.Handshake
	_, message, err := conn.ReadMessage()
	if err != nil {
		return hs, err
	}
	if err := json.Unmarshal(message, &hs); err != nil {
		return hs, err
	}
	return hs, nil
}

// readPump consumes subscription messages from the connection. Every
// subscribe message wholesale-replaces the connection's interest list in
// the registry; malformed requests get a synchronous error frame and
// leave the existing subscription untouched.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close error",
					slog.String("conn_id", c.id),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var req domain.SubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil || req.Type != domain.MessageTypeSubscribe {
			c.sendError("expected a subscribe message")
			continue
		}

		keys, err := domain.ParseInstrumentKeys(req.Instruments)
		if err != nil {
			c.sendError(err.Error())
			continue
		}

		c.hub.registry.Subscribe(c.id, keys)
	}
}

// sendError pushes a small error frame without failing the connection.
func (c *client) sendError(msg string) {
	data, err := json.Marshal(map[string]string{
		"type":  "error",
		"error": msg,
	})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump pumps messages from the hub to the WebSocket connection as
// JSON text frames, with periodic ping frames for keepalive.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Compile-time interface check.
var _ relay.Broadcaster = (*Hub)(nil)
