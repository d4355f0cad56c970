package realtime

import (
	"net/http"
	"sync"

	identitydomain "github.com/eskrenkovic/dodo-exchange/internal/modules/identity/domain"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Room name builders. The session ID used here is the readable one, which is
// what clients know.
func sessionRoom(sessionID string) string {
	return sessionID
}

func requestersRoom(sessionID string) string {
	return sessionID + "-req"
}

func requesterChangesRoom(sessionID string) string {
	return sessionID + "-req-chg"
}

const sendBufferSize = 32

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is one connected observer. Outbound messages go through a buffered
// channel drained by a single writer goroutine; a client that cannot keep up
// has messages dropped rather than blocking the fan-out.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Envelope
	user *identitydomain.User

	mu     sync.Mutex
	closed bool
}

// enqueue is safe to call concurrently with a disconnect: a notifier working
// from an audience snapshot may hold a client that was removed in the
// meantime, and the message just has to go nowhere.
func (c *Client) enqueue(envelope Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- envelope:
	default:
		// Slow consumer. Push is best-effort, the client can re-query.
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.send)
}

func (c *Client) writePump() {
	for envelope := range c.send {
		if err := c.conn.WriteJSON(envelope); err != nil {
			return
		}
	}
}

// Hub is the subscription registry: it tracks connected clients, their room
// memberships as reverse indices, and which clients belong to which user.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	byUser  map[uuid.UUID]map[*Client]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		byUser:  make(map[uuid.UUID]map[*Client]struct{}),
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}

	if client.user != nil {
		if h.byUser[client.user.ID] == nil {
			h.byUser[client.user.ID] = make(map[*Client]struct{})
		}
		h.byUser[client.user.ID][client] = struct{}{}
	}
}

// remove cleans the client out of every index synchronously, so no stale
// room membership survives a disconnect.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, client)

	for room, members := range h.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}

	if client.user != nil {
		members := h.byUser[client.user.ID]
		delete(members, client)
		if len(members) == 0 {
			delete(h.byUser, client.user.ID)
		}
	}

	client.close()
}

func (h *Hub) join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, connected := h.clients[client]; !connected {
		return
	}

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][client] = struct{}{}
}

// prune re-checks a room's membership against keep and removes every client
// that no longer qualifies. Used when a session stops being public: whoever
// joined under the old visibility loses the stream immediately, not at
// reconnect.
func (h *Hub) prune(room string, keep func(*identitydomain.User) bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[room]
	for client := range members {
		if !keep(client.user) {
			delete(members, client)
		}
	}
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) leave(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[room]
	delete(members, client)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

// audience collects the clients to notify: everyone in the room plus every
// connection of the explicitly included users. Deduplicated.
func (h *Hub) audience(room string, include ...uuid.UUID) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	clients := make([]*Client, 0)

	for client := range h.rooms[room] {
		if _, dup := seen[client]; dup {
			continue
		}
		seen[client] = struct{}{}
		clients = append(clients, client)
	}

	for _, userID := range include {
		for client := range h.byUser[userID] {
			if _, dup := seen[client]; dup {
				continue
			}
			seen[client] = struct{}{}
			clients = append(clients, client)
		}
	}

	return clients
}
