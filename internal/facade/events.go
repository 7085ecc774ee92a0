package facade

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Event is one notification pushed to every connected event-feed
// client: a printer status update or a workflow checkpoint advancing.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// eventClient wraps one upgraded connection. Writes are serialized
// since gorilla/websocket forbids concurrent writers on one conn.
type eventClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *eventClient) send(e Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(e)
}

// eventHub fans status and workflow events out to every connected
// client, the way the teacher's WSHub fans status reports out to
// subscribed Moonraker clients — simplified here to a flat broadcast
// since the tool-invocation surface has no per-client subscription
// concept to honor.
type eventHub struct {
	mu      sync.RWMutex
	clients map[*eventClient]bool
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[*eventClient]bool)}
}

func (h *eventHub) broadcast(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if err := c.send(e); err != nil {
			log.Printf("facade: event send error: %v", err)
		}
	}
}

// handleWebSocket upgrades the request and keeps the connection open
// until the client disconnects. Clients are push-only: the feed never
// reads commands off the socket.
func (h *eventHub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("facade: websocket upgrade error: %v", err)
		return
	}
	client := &eventClient{conn: conn}

	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, client)
		h.mu.Unlock()
		conn.Close()
	}()

	// Drain and discard any client traffic so the read deadline never
	// trips and ping/pong control frames are handled.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

