package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/coder/websocket"
)

// ClientMessage is the JSON structure received from clients.
type ClientMessage struct {
	Event   string `json:"event"`
	Content string `json:"content,omitempty"`
}

// ServerMessage is the JSON structure sent to clients. Fields are
// populated per event, everything unused is omitted on the wire.
type ServerMessage struct {
	Event   string   `json:"event,omitempty"`
	Error   string   `json:"error,omitempty"`
	Message string   `json:"message,omitempty"`
	Round   int      `json:"round,omitempty"`
	Token   string   `json:"reconnection_token,omitempty"`
	Players []string `json:"players,omitempty"`
	Scores  []int    `json:"scores,omitempty"`
	Choices []string `json:"choices,omitempty"`
	Winner  string   `json:"winner,omitempty"`
	From    string   `json:"from,omitempty"`
	Content string   `json:"content,omitempty"`
}

// Client represents a single WebSocket connection in a hub.
type Client struct {
	Name string
	Conn *websocket.Conn
	Send chan []byte
}

// NewClient wraps a connection for hub registration.
func NewClient(name string, conn *websocket.Conn) *Client {
	return &Client{
		Name: name,
		Conn: conn,
		Send: make(chan []byte, 16),
	}
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Queue marshals msg onto the client's send channel. Non-blocking: drops
// if the channel is full so one slow client never stalls the room.
func (c *Client) Queue(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] Marshal error: %v\n", err)
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// Hub manages the live connections of one room. The chat side-channel
// uses a second hub with a hard member limit.
type Hub struct {
	mu      sync.RWMutex
	limit   int // 0 means unlimited
	clients map[string]*Client
}

// NewHub creates a hub. limit caps concurrent members; 0 disables the cap.
func NewHub(limit int) *Hub {
	return &Hub{
		limit:   limit,
		clients: make(map[string]*Client),
	}
}

// Register adds a client to the hub. A client with the same name replaces
// the previous entry (reconnection). Fails when the hub is at its limit.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.clients[c.Name]; !exists && h.limit > 0 && len(h.clients) >= h.limit {
		return fmt.Errorf("hub is full (%d members)", h.limit)
	}
	// A same-name register replaces the previous entry; the orphaned
	// write pump exits on its own when its connection dies.
	h.clients[c.Name] = c
	return nil
}

// Unregister removes a client and closes its send channel. Removing an
// absent name is a no-op; a replaced client is left alone.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur, ok := h.clients[c.Name]
	if !ok || cur != c {
		return
	}
	close(cur.Send)
	delete(h.clients, c.Name)
}

// Broadcast sends a message to every live connection. Best-effort: a full
// send channel on one client does not block delivery to the others.
func (h *Hub) Broadcast(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] Marshal error: %v\n", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		select {
		case c.Send <- data:
		default:
		}
	}
}

// Get returns the client registered under name, or nil.
func (h *Hub) Get(name string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[name]
}

// Count returns the number of live connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DisconnectAll closes every connection with the given status and empties
// the hub. Safe to call more than once.
func (h *Hub) DisconnectAll(code websocket.StatusCode, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, c := range h.clients {
		if c.Conn != nil {
			c.Conn.Close(code, reason)
		}
		delete(h.clients, name)
	}
}
