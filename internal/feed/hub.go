// Package feed fans change events out to connected admin dashboards over
// websockets. A notification only tells the dashboard what to refetch.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"storefront/internal/models"
	"storefront/internal/util"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
	allTopics  = "*"
)

var errHubStopped = errors.New("feed hub stopped")

type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]struct{}
	once   sync.Once
}

func (c *Client) wants(collection string) bool {
	if _, ok := c.topics[allTopics]; ok {
		return true
	}
	_, ok := c.topics[collection]
	return ok
}

func (c *Client) closeSend() {
	c.once.Do(func() { close(c.send) })
}

type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *models.ChangeEvent
	done       chan struct{}
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	mu         sync.RWMutex
}

// NewHub creates a hub. checkOrigin may be nil to accept any origin.
func NewHub(logger *zap.Logger, checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *models.ChangeEvent, 256),
		done:       make(chan struct{}),
		upgrader:   websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:     logger,
	}
}

// Run owns the client set until ctx is done. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.closeSend()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			util.FeedSubscribers.Set(0)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			util.FeedSubscribers.Set(float64(n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.closeSend()
			}
			n := len(h.clients)
			h.mu.Unlock()
			util.FeedSubscribers.Set(float64(n))

		case ev := <-h.broadcast:
			data, err := json.Marshal(notification{
				Collection: ev.Collection,
				EventType:  ev.EventType,
				RecordID:   ev.RecordID,
				Record:     ev.Record,
				Timestamp:  ev.Timestamp,
			})
			if err != nil {
				h.logger.Error("Failed to encode notification", zap.Error(err))
				continue
			}
			h.mu.Lock()
			for c := range h.clients {
				if !c.wants(ev.Collection) {
					continue
				}
				select {
				case c.send <- data:
				default:
					// slow consumer; it will reconnect and refetch
					c.closeSend()
					delete(h.clients, c)
				}
			}
			h.mu.Unlock()
		}
	}
}

type notification struct {
	Collection string          `json:"collection"`
	EventType  string          `json:"event_type"`
	RecordID   string          `json:"record_id"`
	Record     json.RawMessage `json:"record,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Publish queues ev for delivery. It never blocks the caller for long; when
// the queue is full the event is dropped since subscribers refetch anyway.
func (h *Hub) Publish(ctx context.Context, ev *models.ChangeEvent) error {
	select {
	case h.broadcast <- ev:
	case <-ctx.Done():
		return ctx.Err()
	default:
		h.logger.Warn("Feed broadcast queue full, dropping event", zap.String("collection", ev.Collection))
	}
	return nil
}

// Subscribers is the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and subscribes the connection to topics.
// No topics means every collection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, topics []string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Client{conn: conn, send: make(chan []byte, sendBuffer), topics: make(map[string]struct{})}
	for _, t := range topics {
		if t != "" {
			c.topics[t] = struct{}{}
		}
	}
	if len(c.topics) == 0 {
		c.topics[allTopics] = struct{}{}
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return errHubStopped
	}
	go h.writePump(c)
	go h.readPump(c)
	return nil
}

func (h *Hub) writePump(c *Client) {
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
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// readPump only services control frames; dashboards never send data.
func (h *Hub) readPump(c *Client) {
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
