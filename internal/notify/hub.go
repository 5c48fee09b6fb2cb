package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"aptos-copytrade/internal/domain"
)

const (
	hubWriteWait    = 10 * time.Second
	hubPongWait     = 60 * time.Second
	hubPingInterval = 30 * time.Second
	hubSendBuffer   = 64
)

// Envelope is the JSON frame pushed to websocket subscribers.
type Envelope struct {
	Kind  domain.EventKind `json:"kind"`
	Event domain.Event     `json:"event"`
}

// Hub broadcasts events to websocket subscribers.
// Subscribers may pass ?follower_id= to receive only that follower's events.
// A subscriber whose buffer is full is disconnected.
type Hub struct {
	upgrader websocket.Upgrader
	log      logrus.FieldLogger

	mu      sync.RWMutex
	clients map[*hubClient]struct{}
	closed  bool
}

type hubClient struct {
	conn       *websocket.Conn
	send       chan []byte
	followerID string
	once       sync.Once
}

func (c *hubClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates an empty hub.
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[*hubClient]struct{}),
	}
}

var _ Notifier = (*Hub)(nil)

// Name implements Named.
func (h *Hub) Name() string { return "websocket" }

// ServeHTTP upgrades the request and streams events until the peer disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	c := &hubClient{
		conn:       conn,
		send:       make(chan []byte, hubSendBuffer),
		followerID: r.URL.Query().Get("follower_id"),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards inbound frames and unregisters the client on disconnect.
func (h *Hub) readLoop(c *hubClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *hubClient) {
	ticker := time.NewTicker(hubPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Notify broadcasts event to matching subscribers without blocking.
func (h *Hub) Notify(_ context.Context, event domain.Event) error {
	msg, err := json.Marshal(Envelope{Kind: event.Kind(), Event: event})
	if err != nil {
		return err
	}
	follower := event.Meta().FollowerID

	var slow []*hubClient
	h.mu.RLock()
	for c := range h.clients {
		if c.followerID != "" && c.followerID != follower {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow websocket subscriber")
		h.remove(c)
	}
	return nil
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*hubClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}
