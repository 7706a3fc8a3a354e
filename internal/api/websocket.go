package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gpioled/internal/auth"
	"github.com/nerrad567/gpioled/internal/infrastructure/config"
	"github.com/nerrad567/gpioled/internal/infrastructure/logging"
	"github.com/nerrad567/gpioled/internal/led"
)

// Message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	wsSendBufferSize = 256
)

// ChannelPrefix prefixes every device event channel, e.g. "device.level_changed".
// Subscribing to ChannelAll receives every device event.
const (
	ChannelPrefix = "device."
	ChannelAll    = ChannelPrefix + "*"
)

// ChannelFor returns the channel device events of type t are broadcast on.
func ChannelFor(t led.EventType) string {
	return ChannelPrefix + string(t)
}

// channelMatches reports whether a subscription to pattern covers channel.
// A pattern ending in ".*" matches every channel under that prefix.
func channelMatches(pattern, channel string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok && strings.HasSuffix(prefix, ".") {
		return strings.HasPrefix(channel, prefix)
	}
	return pattern == channel
}

// WSMessage is a message sent to a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// wsRequest is a message received from a client. The payload is decoded
// according to Type.
type wsRequest struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub fans device events out to WebSocket clients.
//
// It is a led.Observer: each event is broadcast on ChannelFor(event.Type).
// A client whose send buffer is full misses the message; the miss is
// counted in Dropped.
type Hub struct {
	timings   wsTimings
	readLimit int64
	logger    *logging.Logger
	dropped   atomic.Uint64

	mu      sync.RWMutex
	clients map[*WSClient]struct{}
}

// NewHub creates a hub. Run must be called for it to shut clients down.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		timings:   newWSTimings(cfg),
		readLimit: int64(cfg.MaxMessageSize),
		logger:    logger,
		clients:   make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.shutdown()
		if c.conn != nil {
			c.conn.Close() //nolint:errcheck // closing anyway
		}
	}
}

// HandleEvent implements led.Observer.
func (h *Hub) HandleEvent(e led.Event) {
	h.Broadcast(ChannelFor(e.Type), e)
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n, "subject", c.subject, "role", c.role)
}

// Unregister removes a client and closes its send queue. Calling it again
// for the same client is a no-op.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	if c.shutdown() {
		h.logger.Debug("websocket client disconnected", "clients", n, "subject", c.subject)
	}
}

// Broadcast sends payload as an event on channel to every subscribed client.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.isSubscribed(channel) {
			continue
		}
		if !c.deliver(data) {
			h.dropped.Add(1)
			h.logger.Warn("websocket client too slow, event dropped", "channel", channel, "subject", c.subject)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many event deliveries were skipped because a
// client's buffer was full.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// WSClient is one WebSocket connection.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.Mutex
	closed        bool
	subscriptions map[string]struct{}

	// Identity from the ticket the connection was opened with.
	subject string
	role    auth.Role

	// snapshot, when set, is sent with every subscribe response so the
	// client starts from the current state.
	snapshot func() led.Snapshot
}

// deliver queues data without blocking. It reports false when the client
// is closed or its buffer is full.
func (c *WSClient) deliver(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// shutdown closes the send queue once. It reports whether this call did it.
func (c *WSClient) shutdown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for pattern := range c.subscriptions {
		if channelMatches(pattern, channel) {
			return true
		}
	}
	return false
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers are already restricted by the CORS allow-list, and the
	// ticket proves the caller holds a valid token.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebSocket upgrades a request carrying a valid ticket (from
// POST /auth/ws-ticket). Every role may subscribe.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("ticket")
	if id == "" {
		writeUnauthorized(w, r, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(id)
	if !ok {
		writeUnauthorized(w, r, "invalid or expired ticket")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		subject:       entry.subject,
		role:          entry.role,
		snapshot:      s.device.Snapshot,
	}
	s.hub.Register(c)

	go c.writePump(s.hub.timings)
	go c.readPump(s.hub.timings, s.hub.readLimit)
}

// wsTimings are the keepalive intervals derived from config.
type wsTimings struct {
	ping     time.Duration // between server pings
	readWait time.Duration // silence tolerated before the read fails
	write    time.Duration // per-write deadline
}

const (
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 10 * time.Second
)

func newWSTimings(cfg config.WebSocketConfig) wsTimings {
	ping := time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = defaultPingInterval
	}
	pong := time.Duration(cfg.PongTimeout) * time.Second
	if pong <= 0 {
		pong = defaultPongTimeout
	}
	return wsTimings{ping: ping, readWait: ping + pong, write: pong}
}

func (c *WSClient) readPump(t wsTimings, limit int64) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close() //nolint:errcheck // closing anyway
	}()

	c.conn.SetReadLimit(limit)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(t.readWait)) }
	extend() //nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			}
			return
		}
		extend() //nolint:errcheck // a failed deadline surfaces as a read error
		c.handleMessage(data)
	}
}

func (c *WSClient) writePump(t wsTimings) {
	ticker := time.NewTicker(t.ping)
	defer func() {
		ticker.Stop()
		c.conn.Close() //nolint:errcheck // closing anyway
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(t.write)) //nolint:errcheck // surfaces on write
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // going away
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(t.write)) //nolint:errcheck // surfaces on write
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var req wsRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.reply("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch req.Type {
	case WSTypeSubscribe:
		c.updateSubscriptions(req, true)
	case WSTypeUnsubscribe:
		c.updateSubscriptions(req, false)
	case WSTypePing:
		c.reply(req.ID, WSTypePong, nil)
	default:
		c.reply(req.ID, WSTypeError, map[string]string{"message": "unknown message type: " + req.Type})
	}
}

// updateSubscriptions adds or removes the channels named in req.
func (c *WSClient) updateSubscriptions(req wsRequest, add bool) {
	var p WSSubscribePayload
	if err := json.Unmarshal(req.Payload, &p); err != nil || len(p.Channels) == 0 {
		c.reply(req.ID, WSTypeError, map[string]string{"message": "payload must list channels"})
		return
	}

	c.mu.Lock()
	for _, ch := range p.Channels {
		if add {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	if !add {
		c.reply(req.ID, WSTypeResponse, map[string]any{"unsubscribed": p.Channels})
		return
	}

	c.hub.logger.Info("websocket client subscribed", "channels", p.Channels, "subject", c.subject)
	resp := map[string]any{"subscribed": p.Channels}
	if c.snapshot != nil {
		resp["device"] = c.snapshot()
	}
	c.reply(req.ID, WSTypeResponse, resp)
}

func (c *WSClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.deliver(data)
}
