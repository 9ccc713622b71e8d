// Package push fans admin notifications out to websocket subscribers.
package push

import (
	"net/http"
	"sync"
	"time"

	"github.com/atinyakov/folio/internal/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// WriteTimeout bounds a single frame write to one subscriber.
	WriteTimeout = 5 * time.Second
	// SendQueue is how many frames may wait for one subscriber before it is
	// dropped as too slow.
	SendQueue = 16
)

type client struct {
	conn *websocket.Conn
	// send is closed by Hub.remove, under the hub lock.
	send chan models.PushFrame
}

// Hub keeps the connected admin sockets.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates an empty Hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:      log,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		clients:  make(map[*client]struct{}),
	}
}

// ServeWS upgrades the request and holds the socket until the peer leaves.
// Frames sent by the peer are discarded.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	c := h.add(conn)
	go h.writeLoop(c)
	h.log.Info("admin subscribed", zap.String("remote", r.RemoteAddr))

	defer func() {
		h.remove(c)
		_ = conn.Close()
		h.log.Info("admin unsubscribed", zap.String("remote", r.RemoteAddr))
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan models.PushFrame, SendQueue)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

// remove unsubscribes c. It is safe to call more than once.
func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// writeLoop is the only writer of c.conn.
func (h *Hub) writeLoop(c *client) {
	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
		if err := c.conn.WriteJSON(frame); err != nil {
			h.log.Warn("push failed", zap.Error(err))
			h.remove(c)
			_ = c.conn.Close()
			return
		}
	}
}

// Publish queues frame for every subscriber and returns without waiting
// for any socket. A subscriber whose queue is full is dropped.
func (h *Hub) Publish(frame models.PushFrame) {
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("dropping slow subscriber", zap.String("remote", c.conn.RemoteAddr().String()))
		h.remove(c)
		_ = c.conn.Close()
	}
}

// Subscribers returns the number of connected sockets.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
