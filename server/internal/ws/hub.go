package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/repowatch/repowatch/server/internal/alerts"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong before treating the connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBufSize is the per-client outgoing message buffer depth.
	sendBufSize = 32
)

// EventSnapshot is the periodic full-state message.
const EventSnapshot = "snapshot"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origins are checked at the reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Snapshot is the payload of a "snapshot" message.
type Snapshot struct {
	Alerts      []alerts.Alert    `json:"alerts"`
	Statistics  alerts.Statistics `json:"statistics"`
	GeneratedAt string            `json:"generated_at"` // RFC3339
}

// Hub relays alert lifecycle events to WebSocket clients as they happen and
// sends every client a full snapshot of active alerts on each interval.
type Hub struct {
	engine   *alerts.Engine
	interval time.Duration

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a Hub for engine that sends snapshots every interval.
func New(engine *alerts.Engine, interval time.Duration) *Hub {
	return &Hub{
		engine:   engine,
		interval: interval,
		clients:  make(map[*client]struct{}),
	}
}

// Run subscribes to engine events and starts the snapshot ticker. It blocks
// until ctx is cancelled, then closes all connections.
func (h *Hub) Run(ctx context.Context) {
	unsubscribe := h.engine.Subscribe(h.relay)
	defer unsubscribe()

	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-t.C:
			if data, err := h.snapshot(); err == nil {
				h.broadcast(data)
			}
		}
	}
}

// ServeHTTP upgrades the connection and serves the client until it closes.
// The current snapshot is sent immediately on connect.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufSize)}
	if data, err := h.snapshot(); err == nil {
		c.send <- data
	}
	h.register(c)
	defer h.unregister(c)

	go c.writePump()
	c.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// --- internal ---------------------------------------------------------------

// relay runs on the engine's goroutine and must not block.
func (h *Hub) relay(ev alerts.Event) {
	data, err := json.Marshal(Message{Event: string(ev.Type), Data: ev})
	if err != nil {
		slog.Error("ws: encode event", "type", ev.Type, "err", err)
		return
	}
	h.broadcast(data)
}

func (h *Hub) snapshot() ([]byte, error) {
	active := h.engine.Active()
	if active == nil {
		active = []alerts.Alert{}
	}
	return json.Marshal(Message{
		Event: EventSnapshot,
		Data: Snapshot{
			Alerts:      active,
			Statistics:  h.engine.Statistics(),
			GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// broadcast queues data for every client. Clients whose buffer is full are
// disconnected.
func (h *Hub) broadcast(data []byte) {
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("ws: dropping slow client", "remote", c.conn.RemoteAddr().String())
		h.unregister(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

// writePump forwards queued messages and sends pings. One goroutine per client.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{}) //nolint:errcheck
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump handles control frames and detects disconnects.
func (c *client) readPump() {
	defer c.conn.Close()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
