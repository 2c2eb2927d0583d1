package events

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/ecofridge/server/internal/domain/shared"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Message is the JSON frame sent to subscribers
type Message struct {
	Event      string          `json:"event"`
	TenantID   string          `json:"tenant_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

type subscriber struct {
	conn   *websocket.Conn
	tenant string
	send   chan Message
}

// Hub fans domain events out to websocket subscribers of the same tenant
type Hub struct {
	upgrader websocket.Upgrader
	logger   *zap.Logger

	mutex   sync.RWMutex
	clients map[*subscriber]struct{}

	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan Message
	done       chan struct{}
}

// NewHub creates a hub. Run must be started before subscribers connect.
func NewHub(allowedOrigins []string, logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger:     logger.Named("events-hub"),
		clients:    make(map[*subscriber]struct{}),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan Message, 64),
		done:       make(chan struct{}),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Run manages subscriptions until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mutex.Unlock()
			return
		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Debug("Subscriber connected", zap.String("tenant_id", c.tenant), zap.Int("total", total))
		case c := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mutex.Unlock()
		case msg := <-h.broadcast:
			h.mutex.Lock()
			for c := range h.clients {
				if c.tenant != msg.TenantID {
					continue
				}
				select {
				case c.send <- msg:
				default:
					// slow subscriber
					delete(h.clients, c)
					close(c.send)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// ClientCount returns the number of connected subscribers
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Publish implements outbound.EventPublisher. Events are dropped when the
// broadcast buffer is full.
func (h *Hub) Publish(_ context.Context, events ...shared.DomainEvent) {
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			h.logger.Warn("Event encoding failed", zap.String("event", e.EventName()), zap.Error(err))
			continue
		}

		msg := Message{Event: e.EventName(), TenantID: e.Tenant(), OccurredAt: e.OccurredAt(), Payload: payload}
		select {
		case h.broadcast <- msg:
		default:
			h.logger.Warn("Event hub saturated, dropping event", zap.String("event", e.EventName()))
		}
	}
}

// ServeWS upgrades the request and streams the tenant's events until the
// peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, tenantID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", zap.Error(err))
		return
	}

	c := &subscriber{conn: conn, tenant: tenantID, send: make(chan Message, 16)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client frames and detects disconnects
func (h *Hub) readPump(c *subscriber) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
