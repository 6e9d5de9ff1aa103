package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-kb/models"
)

// Conn is the subset of a WebSocket connection the hub writes to.
// *websocket.Conn from gorilla/websocket satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Notifier is what the queue service and worker use to publish job events.
type Notifier interface {
	Broadcast(ctx context.Context, event models.Event)
}

type client struct {
	id   string
	conn Conn
	// send is drained by a single writer goroutine, as gorilla/websocket
	// allows one concurrent writer per connection. It is never closed.
	send chan models.Event
	done chan struct{}
}

// Hub fans job events out to every registered connection. Broadcast only
// queues; each connection has its own writer. A connection whose queue is
// full or whose write fails is closed and dropped, and the failure never
// reaches the caller.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client

	writeTimeout      time.Duration
	heartbeatInterval time.Duration
	sendBuffer        int
	logger            *logrus.Logger
}

type Option func(*Hub)

func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		h.writeTimeout = d
	}
}

func WithHeartbeatInterval(d time.Duration) Option {
	return func(h *Hub) {
		h.heartbeatInterval = d
	}
}

// WithSendBuffer sets how many events may wait for a slow connection before
// it is dropped.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func NewHub(logger *logrus.Logger, opts ...Option) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &Hub{
		clients:           make(map[string]*client),
		writeTimeout:      10 * time.Second,
		heartbeatInterval: 30 * time.Second,
		sendBuffer:        64,
		logger:            logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds conn and returns the id used to unregister it.
func (h *Hub) Register(conn Conn) string {
	c := &client{
		id:   uuid.New().String(),
		conn: conn,
		send: make(chan models.Event, h.sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	go h.writeLoop(c)

	h.logger.WithFields(logrus.Fields{
		"client_id":   c.id,
		"connections": total,
	}).Info("WebSocket client connected")
	return c.id
}

// Unregister removes and closes the connection. Unknown ids are ignored.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.close()

	h.logger.WithFields(logrus.Fields{
		"client_id":   id,
		"connections": total,
	}).Info("WebSocket client disconnected")
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues event for every connection without waiting for any
// write. Connections that cannot keep up are dropped.
func (h *Hub) Broadcast(ctx context.Context, event models.Event) {
	if ctx.Err() != nil {
		return
	}

	h.mu.RLock()
	var slow []string
	for id, c := range h.clients {
		select {
		case c.send <- event:
		default:
			slow = append(slow, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range slow {
		h.logger.WithFields(logrus.Fields{
			"client_id":  id,
			"event_type": event.Type,
		}).Warn("Client send queue full, dropping client")
		h.Unregister(id)
	}
}

func (h *Hub) writeLoop(c *client) {
	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			if err := h.write(c, event); err != nil {
				h.logger.WithError(err).WithFields(logrus.Fields{
					"client_id":  c.id,
					"event_type": event.Type,
				}).Warn("Failed to deliver event, dropping client")
				h.Unregister(c.id)
				return
			}
		}
	}
}

func (h *Hub) write(c *client, event models.Event) error {
	if h.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
			return err
		}
	}
	return c.conn.WriteJSON(event)
}

// close is called once, by whoever removed c from the client map.
func (c *client) close() {
	close(c.done)
	c.conn.Close()
}

// Run sends a heartbeat every interval until ctx is cancelled, then closes
// every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.Broadcast(ctx, models.HeartbeatEvent())
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
