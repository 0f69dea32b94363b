package websocket

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"sealdesk/signing-portal/signing-portal-backend/internal/notifications"
)

const (
	// writeWait is the time allowed to write an event to a client.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from a client.
	pongWait = 60 * time.Second

	// pingPeriod is the interval between pings. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// Manager owns the set of websocket subscribers and fans signing
// events out to them.
type Manager struct {
	clients    map[*client]bool
	broadcast  chan notifications.Event
	register   chan *client
	unregister chan *client
	stop       chan struct{}
	upgrader   websocket.Upgrader
	logger     *zap.Logger
	count      atomic.Int64
}

type client struct {
	conn *websocket.Conn
	send chan notifications.Event
}

// NewManager creates a Manager and starts its dispatch loop.
func NewManager(logger *zap.Logger) *Manager {
	m := &Manager{
		clients:    make(map[*client]bool),
		broadcast:  make(chan notifications.Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		stop:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}

	go m.run()

	return m
}

// Serve upgrades an HTTP request to a websocket subscription. The
// connection receives every event published after it registers.
func (m *Manager) Serve(w http.ResponseWriter, r *http.Request) error {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade connection: %w", err)
	}

	c := &client{
		conn: conn,
		send: make(chan notifications.Event, 64),
	}

	select {
	case m.register <- c:
	case <-m.stop:
		conn.Close()
		return fmt.Errorf("manager is shut down")
	}

	go m.readPump(c)
	go m.writePump(c)

	return nil
}

// Broadcast queues an event for delivery to every connected client.
// It never blocks; when the queue is full the event is dropped.
func (m *Manager) Broadcast(event notifications.Event) error {
	select {
	case m.broadcast <- event:
		return nil
	default:
		return fmt.Errorf("broadcast queue full")
	}
}

// ClientCount returns the number of connected subscribers.
func (m *Manager) ClientCount() int {
	return int(m.count.Load())
}

// Close shuts down the dispatch loop and disconnects all clients.
func (m *Manager) Close() {
	close(m.stop)
}

func (m *Manager) run() {
	for {
		select {
		case c := <-m.register:
			m.clients[c] = true
			m.count.Store(int64(len(m.clients)))
			m.logger.Debug("websocket client connected",
				zap.Int("clients", len(m.clients)))

		case c := <-m.unregister:
			if _, ok := m.clients[c]; ok {
				delete(m.clients, c)
				close(c.send)
				m.count.Store(int64(len(m.clients)))
				m.logger.Debug("websocket client disconnected",
					zap.Int("clients", len(m.clients)))
			}

		case event := <-m.broadcast:
			for c := range m.clients {
				select {
				case c.send <- event:
				default:
					// Slow consumer, drop it.
					delete(m.clients, c)
					close(c.send)
				}
			}
			m.count.Store(int64(len(m.clients)))

		case <-m.stop:
			for c := range m.clients {
				close(c.send)
				c.conn.Close()
				delete(m.clients, c)
			}
			m.count.Store(0)
			return
		}
	}
}

// readPump drains the connection so control frames are processed.
// Subscribers never send application messages.
func (m *Manager) readPump(c *client) {
	defer func() {
		select {
		case m.unregister <- c:
		case <-m.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, reader, err := c.conn.NextReader()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		io.Copy(io.Discard, reader)
	}
}

// writePump delivers queued events and keeps the connection alive
// with periodic pings.
func (m *Manager) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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
