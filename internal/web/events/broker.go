// Package events streams registry lifecycle events to WebSocket subscribers.
package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/litekit/litebridge/internal/registry"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Broker fans registry events out to connected WebSocket clients. A slow
// client that cannot drain its buffer is dropped rather than blocking the
// registry.
type Broker struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan registry.Event
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{clients: make(map[*client]struct{})}
}

// Publish implements registry.EventSink.
func (b *Broker) Publish(e registry.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		select {
		case c.send <- e:
		default:
			log.Debug().Msg("Dropping slow event subscriber")
			delete(b.clients, c)
			close(c.send)
		}
	}
}

// Handle upgrades the request and subscribes the connection to the event
// stream until the client goes away or the broker stops.
func (b *Broker) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, send: make(chan registry.Event, sendBufferSize)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close()
		return
	}
	b.clients[c] = struct{}{}
	b.mu.Unlock()

	go b.writeLoop(c)
	b.readLoop(c)
}

// readLoop discards inbound frames; its only job is noticing disconnects.
func (b *Broker) readLoop(c *client) {
	defer b.drop(c)
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (b *Broker) writeLoop(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case e, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteJSON(e); err != nil {
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

func (b *Broker) drop(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
	b.mu.Unlock()
	c.conn.Close()
}

// Stop disconnects every subscriber.
func (b *Broker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for c := range b.clients {
		close(c.send)
		delete(b.clients, c)
	}
}
