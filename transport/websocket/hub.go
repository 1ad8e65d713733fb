package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// Outbound messages buffered per client before it is dropped.
	sendBufferSize = 256
)

// Handler receives connection lifecycle and inbound events. Calls for one
// connection are made in order from that connection's read goroutine.
type Handler interface {
	Connected(connID string)
	Received(connID, event string, data json.RawMessage)
	Disconnected(connID string)
}

// Message is the envelope for both directions
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	// empty to means every client
	to   string
	data []byte
}

// Client represents a WebSocket client
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of active clients and routes messages to them
type Hub struct {
	handler  Handler
	upgrader websocket.Upgrader

	// Registered clients by connection ID
	clients map[string]*Client
	mu      sync.RWMutex

	// Messages queued for delivery
	outbound chan outbound

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done chan struct{}
}

// NewHub creates a new WebSocket hub. An empty allowedOrigins accepts any
// origin.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		outbound:   make(chan outbound, 1024),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(allowedOrigins),
	}
	return h
}

// SetHandler installs the receiver of inbound events. It must be called
// before the first connection is served.
func (h *Hub) SetHandler(handler Handler) {
	h.handler = handler
}

func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(allowed) == 0 || origin == "" {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

// Run starts the hub's event loop and closes every client when ctx ends
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.outbound:
			h.deliver(msg)

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ServeWS upgrades the request and starts the client pumps
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}
	if h.handler != nil {
		h.handler.Connected(client.id)
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// Send queues an event for one connection. Unknown ids are ignored.
func (h *Hub) Send(connID, event string, data any) {
	h.queue(connID, event, data)
}

// Broadcast queues an event for every connection
func (h *Hub) Broadcast(event string, data any) {
	h.queue("", event, data)
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) queue(to, event string, data any) {
	payload, err := encode(event, data)
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", event, err)
		return
	}
	select {
	case h.outbound <- outbound{to: to, data: payload}:
	case <-h.done:
	}
}

func encode(event string, data any) ([]byte, error) {
	msg := Message{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client.id] = client
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("Client %s registered (total clients: %d)", client.id, total)
}

// unregisterClient removes a client and closes its send channel
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.id]
	if ok && current == client {
		delete(h.clients, client.id)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		log.Printf("Client %s unregistered (remaining clients: %d)", client.id, total)
	}
}

// deliver hands a message to its clients, dropping any whose buffer is full
func (h *Hub) deliver(msg outbound) {
	h.mu.RLock()
	var targets []*Client
	if msg.to == "" {
		targets = make([]*Client, 0, len(h.clients))
		for _, client := range h.clients {
			targets = append(targets, client)
		}
	} else if client, ok := h.clients[msg.to]; ok {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- msg.data:
		default:
			log.Printf("Client %s send buffer full, dropping connection", client.id)
			h.unregisterClient(client)
		}
	}
}

// readPump pumps messages from the WebSocket connection to the handler
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
		if c.hub.handler != nil {
			c.hub.handler.Disconnected(c.id)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			log.Printf("Client %s sent an invalid message: %v", c.id, err)
			continue
		}
		if c.hub.handler != nil {
			c.hub.handler.Received(c.id, msg.Event, msg.Data)
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection. Each
// message goes out as its own text frame.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
