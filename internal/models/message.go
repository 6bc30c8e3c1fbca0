package models

import (
	"sort"
	"time"
)

// Message is a direct message between two users. At least one of Text
// and Image is set. The ID is assigned by the durable store and is the
// dedup key for the two delivery paths (HTTP response and channel echo).
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Text       string    `json:"text,omitempty"`
	Image      string    `json:"image,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Counterpart returns the other participant of the message relative to
// the given user.
func (m Message) Counterpart(self string) string {
	if m.SenderID == self {
		return m.ReceiverID
	}
	return m.SenderID
}

// SendMessageRequest is the body of POST /api/messages/send/:id.
// Image, when present, is a base64 data URI.
type SendMessageRequest struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// ConversationKey derives the canonical room name for a two-party
// conversation. Both participants compute the same key regardless of
// who initiates: ConversationKey(a, b) == ConversationKey(b, a).
func ConversationKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "_" + ids[1]
}
