package handlers

import (
	"encoding/json"
	"sync"

	"pingme/internal/models"
	"pingme/internal/presence"
	"pingme/internal/utils"

	"github.com/gofiber/websocket/v2"
)

// frameWriter is the part of a websocket connection the hub needs.
// Tests substitute a fake; production passes *websocket.Conn.
type frameWriter interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

const sendBufferSize = 32

// client is one event-channel connection. It starts Unbound; a valid
// setup event binds it to an identity. Outbound frames go through a
// buffered channel drained by writePump so a slow peer never blocks the
// hub lock. A full buffer is a transient delivery failure: the frame is
// dropped, the durable copy is not affected.
//
// enqueue and shutdown share a mutex: a broadcast copies its targets
// before delivering, so an enqueue can arrive after the connection was
// dropped and must not hit a closed channel.
type client struct {
	id       string
	identity string // empty while Unbound; written only under the hub lock
	conn     frameWriter
	send     chan []byte

	mu     sync.Mutex
	closed bool
}

func (c *client) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

func (c *client) enqueue(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		// Slow consumer; drop the frame rather than block the sender.
	}
}

func (c *client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Hub owns the room subscription tables and the presence registry
// side effects. All table access happens under one mutex; broadcast
// delivery copies the subscriber list under the lock and enqueues
// outside the per-connection write path.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*client            // connection id -> client
	rooms    map[string]map[string]*client // room -> connection id -> client
	presence *presence.Registry
}

func NewHub(reg *presence.Registry) *Hub {
	return &Hub{
		clients:  make(map[string]*client),
		rooms:    make(map[string]map[string]*client),
		presence: reg,
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

// bind promotes an Unbound connection and joins its personal room. The
// caller broadcasts the presence transition.
func (h *Hub) bind(c *client, identity string) (cameOnline bool) {
	h.mu.Lock()
	c.identity = identity
	h.joinLocked(identity, c)
	h.mu.Unlock()
	return h.presence.Register(identity, c.id)
}

// Join subscribes the connection to a room. Idempotent.
func (h *Hub) Join(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joinLocked(room, c)
}

func (h *Hub) joinLocked(room string, c *client) {
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]*client)
	}
	h.rooms[room][c.id] = c
}

// drop removes a closed connection from every room and unregisters its
// presence binding. Presence broadcasts go to the remaining clients
// exactly once per offline transition.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	for room, conns := range h.rooms {
		if _, ok := conns[c.id]; ok {
			delete(conns, c.id)
			if len(conns) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	h.mu.Unlock()
	c.shutdown()

	if identity, wentOffline := h.presence.Unregister(c.id); wentOffline {
		h.BroadcastAll(models.Event{Type: models.EventUserOffline, Identity: identity}, "")
		h.BroadcastAll(models.Event{Type: models.EventOnlineUsers, Identities: h.presence.Snapshot()}, "")
	}
}

// Broadcast delivers an event to every subscriber of the room, skipping
// excludeConnID when non-empty. The subscriber list is copied under the
// lock; delivery happens outside it.
func (h *Hub) Broadcast(room string, evt models.Event, excludeConnID string) {
	data, err := json.Marshal(evt)
	if err != nil {
		utils.LogError(err, "Broadcast marshal")
		return
	}

	h.mu.Lock()
	conns := h.rooms[room]
	targets := make([]*client, 0, len(conns))
	for id, c := range conns {
		if id == excludeConnID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.enqueue(data)
	}
}

// BroadcastAll delivers an event to every connected client, skipping
// excludeConnID when non-empty.
func (h *Hub) BroadcastAll(evt models.Event, excludeConnID string) {
	data, err := json.Marshal(evt)
	if err != nil {
		utils.LogError(err, "BroadcastAll marshal")
		return
	}

	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for id, c := range h.clients {
		if id == excludeConnID {
			continue
		}
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.enqueue(data)
	}
}

// sendTo delivers an event to a single connection.
func (h *Hub) sendTo(c *client, evt models.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		utils.LogError(err, "sendTo marshal")
		return
	}
	c.enqueue(data)
}
