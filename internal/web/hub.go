package web

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"comfy-studio/server/internal/engine"
)

// Client represents a WebSocket client connection
type Client struct {
	ID     string
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *RunHub
	mu     sync.Mutex
	closed bool
}

// RunHub manages WebSocket connections and broadcasts run lifecycle events
// to every connected browser tab.
type RunHub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan engine.Run
	mu         sync.RWMutex
}

// NewRunHub creates a new run event hub
func NewRunHub() *RunHub {
	return &RunHub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		broadcast:  make(chan engine.Run, 256),
	}
}

// Run starts the hub's event loop
func (h *RunHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case run := <-h.broadcast:
			h.broadcastRun(run)
		}
	}
}

func (h *RunHub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	log.Printf("[Hub] Client connected: %s (total: %d)", client.ID, len(h.clients))

	go client.writePump()
}

func (h *RunHub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
		log.Printf("[Hub] Client disconnected: %s (total: %d)", client.ID, len(h.clients))
	}
}

// broadcastRun sends one run snapshot to all connected clients
func (h *RunHub) broadcastRun(run engine.Run) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(map[string]interface{}{
		"type": "run_update",
		"data": run,
		"time": time.Now().Unix(),
	})
	if err != nil {
		log.Printf("[Hub] Failed to marshal run event: %v", err)
		return
	}

	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// Client send buffer full, skip
			log.Printf("[Hub] Client send buffer full: %s", client.ID)
		}
	}
}

// Broadcast queues a run snapshot for delivery to all connected clients.
// Never blocks the caller; a full hub drops the event.
func (h *RunHub) Broadcast(run engine.Run) {
	select {
	case h.broadcast <- run:
	default:
		log.Printf("[Hub] Broadcast channel full, dropping run event")
	}
}

// GetClientCount returns the number of connected clients
func (h *RunHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
)

// writePump owns all writes on the connection: queued run events plus the
// keepalive pings. Serializing them here means no other goroutine may
// touch Conn for writing.
func (c *Client) writePump() {
	pings := time.NewTicker(pingInterval)
	defer func() {
		pings.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.mu.Lock()
			if !ok {
				// Send was closed by the hub during unregister.
				c.closed = true
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				c.mu.Unlock()
				return
			}
			err := c.Conn.WriteMessage(websocket.TextMessage, message)
			if err != nil {
				log.Printf("[Client] Error writing to %s: %v", c.ID, err)
				c.closed = true
			}
			c.mu.Unlock()
			if err != nil {
				return
			}

		case <-pings.C:
			c.mu.Lock()
			if c.closed {
				c.mu.Unlock()
				return
			}
			err := c.Conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				log.Printf("[Client] Error sending ping to %s: %v", c.ID, err)
				c.closed = true
			}
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// Close closes the client connection, once.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.Conn.Close()
}

// readPump drains the client. The event stream is one-way, so inbound
// frames are discarded; reading still has to happen for pong handling
// and to notice the browser going away.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Client] Unexpected close from %s: %v", c.ID, err)
			}
			return
		}
	}
}
