package models

// Channel event types. The same envelope is used in both directions;
// unused fields are omitted on the wire.
const (
	EventSetup           = "setup"
	EventJoinChat        = "joinChat"
	EventNewMessage      = "newMessage"
	EventMessageReceived = "messageReceived"
	EventTyping          = "typing"
	EventStopTyping      = "stopTyping"
	EventUserOnline      = "userOnline"
	EventUserOffline     = "userOffline"
	EventOnlineUsers     = "onlineUsers"
	EventMessageRead     = "messageRead"
)

// Event is the wire envelope for the event channel.
type Event struct {
	Type       string   `json:"type"`
	Identity   string   `json:"identity,omitempty"`
	Identities []string `json:"identities,omitempty"`
	Room       string   `json:"room,omitempty"`
	Message    *Message `json:"message,omitempty"`
	MessageID  string   `json:"message_id,omitempty"`
}
