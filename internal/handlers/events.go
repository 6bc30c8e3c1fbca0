package handlers

import (
	"encoding/json"
	"log"

	"pingme/internal/models"
)

// HandleEvent dispatches one inbound channel event. Malformed events
// are logged and dropped; they never close the connection. Everything
// except setup is dropped while the connection is Unbound.
func (h *Hub) HandleEvent(c *client, raw []byte) {
	var evt models.Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		log.Printf("dropping undecodable event from conn %s: %v", c.id, err)
		return
	}

	if c.identity == "" && evt.Type != models.EventSetup {
		log.Printf("dropping %q event from unbound conn %s", evt.Type, c.id)
		return
	}

	switch evt.Type {
	case models.EventSetup:
		h.handleSetup(c, evt)
	case models.EventJoinChat:
		h.handleJoinChat(c, evt)
	case models.EventNewMessage:
		h.handleNewMessage(c, evt)
	case models.EventTyping, models.EventStopTyping:
		h.handleTyping(c, evt)
	case models.EventMessageRead:
		h.handleMessageRead(c, evt)
	default:
		log.Printf("unknown event type %q from conn %s", evt.Type, c.id)
	}
}

// handleSetup binds the connection to the identity it carries, joins
// the identity's personal room, and announces the presence transition.
// The new connection gets the full online snapshot. A connection binds
// exactly once: rebinding would leave the old identity's presence entry
// and room membership dangling, so a repeated setup is malformed
// traffic and is dropped.
func (h *Hub) handleSetup(c *client, evt models.Event) {
	if evt.Identity == "" {
		log.Printf("dropping setup without identity from conn %s", c.id)
		return
	}
	if c.identity != "" {
		log.Printf("dropping setup on already bound conn %s", c.id)
		return
	}
	if cameOnline := h.bind(c, evt.Identity); cameOnline {
		h.BroadcastAll(models.Event{Type: models.EventUserOnline, Identity: evt.Identity}, c.id)
	}
	h.sendTo(c, models.Event{Type: models.EventOnlineUsers, Identities: h.presence.Snapshot()})
}

func (h *Hub) handleJoinChat(c *client, evt models.Event) {
	if evt.Room == "" {
		log.Printf("dropping joinChat without room from conn %s", c.id)
		return
	}
	h.Join(evt.Room, c)
}

// handleNewMessage routes a freshly persisted message to the receiver's
// personal room. Routing by recipient identity rather than by the
// conversation room is deliberate: the recipient gets the message even
// if they have never opened this conversation.
func (h *Hub) handleNewMessage(c *client, evt models.Event) {
	if evt.Message == nil || evt.Message.ReceiverID == "" {
		log.Printf("dropping newMessage without receiver from conn %s", c.id)
		return
	}
	out := models.Event{Type: models.EventMessageReceived, Message: evt.Message}
	h.Broadcast(evt.Message.ReceiverID, out, c.id)
}

// handleTyping relays typing and stopTyping strictly within the
// two-party conversation room, never globally.
func (h *Hub) handleTyping(c *client, evt models.Event) {
	if evt.Room == "" {
		log.Printf("dropping %q without room from conn %s", evt.Type, c.id)
		return
	}
	out := models.Event{Type: evt.Type, Room: evt.Room, Identity: c.identity}
	h.Broadcast(evt.Room, out, c.id)
}

func (h *Hub) handleMessageRead(c *client, evt models.Event) {
	if evt.Room == "" || evt.MessageID == "" {
		log.Printf("dropping messageRead without room or message id from conn %s", c.id)
		return
	}
	out := models.Event{
		Type:      models.EventMessageRead,
		Room:      evt.Room,
		MessageID: evt.MessageID,
		Identity:  c.identity,
	}
	h.Broadcast(evt.Room, out, c.id)
}
