package signal

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rillcall/internal/core/domain"
	"rillcall/internal/core/ports"
)

const sendBufferSize = 32

// HubConfig tunes the websocket connections of a NotificationHub.
type HubConfig struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

type hubClient struct {
	id        string
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func (c *hubClient) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// NotificationHub fans call notifications out to the websocket clients of
// the local UI. Slow clients are disconnected rather than blocking the
// call engine.
type NotificationHub struct {
	cfg      HubConfig
	upgrader websocket.Upgrader

	clients map[string]*hubClient
	mu      sync.RWMutex

	logger *zap.SugaredLogger
}

var _ ports.Notifier = (*NotificationHub)(nil)

func NewNotificationHub(cfg HubConfig, logger *zap.SugaredLogger) *NotificationHub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = 60 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	h := &NotificationHub{
		cfg:     cfg,
		clients: make(map[string]*hubClient),
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	return h
}

// checkOrigin allows same-origin requests (no Origin header) and the
// configured origins; an empty list allows any origin.
func (h *NotificationHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Notify implements ports.Notifier.
func (h *NotificationHub) Notify(n domain.Notification) {
	data, err := json.Marshal(n)
	if err != nil {
		h.logger.Errorw("Failed to encode notification", "kind", n.Kind, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warnw("Notification client too slow, disconnecting", "client_id", id)
			delete(h.clients, id)
			c.close()
		}
	}
}

// ClientCount returns the number of connected websocket clients.
func (h *NotificationHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request and streams notifications until the
// client goes away. Authentication happens before this handler.
func (h *NotificationHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("Websocket upgrade failed", "error", err)
		return
	}

	c := &hubClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.logger.Infow("Notification client connected", "client_id", c.id, "remote_addr", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

// readPump only consumes control frames; the UI sends intents over HTTP.
func (h *NotificationHub) readPump(c *hubClient) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.logger.Infow("Notification client disconnected", "client_id", c.id)
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Infow("Notification client read error", "client_id", c.id, "error", err)
			}
			return
		}
	}
}

func (h *NotificationHub) writePump(c *hubClient) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *NotificationHub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		c.close()
	}
}

// Close disconnects every client.
func (h *NotificationHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		delete(h.clients, id)
		c.close()
	}
}
