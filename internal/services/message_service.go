package services

import (
	"context"
	"sort"

	"pingme/internal/models"
	"pingme/internal/store"
	"pingme/internal/uploads"
)

type MessageService struct {
	users    store.Users
	messages store.Messages
	uploads  uploads.Store
}

func NewMessageService(users store.Users, messages store.Messages, up uploads.Store) *MessageService {
	return &MessageService{users: users, messages: messages, uploads: up}
}

// Send uploads the image (if any) and persists the message. An upload
// failure aborts the send before anything is written; an empty message
// is rejected by the store with ErrEmptyMessage.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID string, req models.SendMessageRequest) (models.Message, error) {
	imageURL := ""
	if req.Image != "" {
		url, err := s.uploads.Upload(ctx, req.Image)
		if err != nil {
			return models.Message{}, err
		}
		imageURL = url
	}
	return s.messages.Create(ctx, senderID, receiverID, req.Text, imageURL)
}

// History returns the conversation with the peer, ordered by creation
// time ascending. The store's ordering is authoritative for replay.
func (s *MessageService) History(ctx context.Context, selfID, peerID string) ([]models.Message, error) {
	return s.messages.Between(ctx, selfID, peerID)
}

// Roster returns every other user decorated with the advisory
// last-message preview, most recently active first and users with no
// activity last.
func (s *MessageService) Roster(ctx context.Context, selfID string) ([]models.RosterEntry, error) {
	users, err := s.users.ListExcept(ctx, selfID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.RosterEntry, 0, len(users))
	for _, u := range users {
		entry := models.RosterEntry{User: u}
		last, err := s.messages.LastBetween(ctx, selfID, u.ID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			entry.LastMessage = previewText(*last)
			at := last.CreatedAt
			entry.LastMessageAt = &at
		}
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].LastMessageAt, entries[j].LastMessageAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return entries, nil
}

func previewText(m models.Message) string {
	if m.Text != "" {
		return m.Text
	}
	return "Sent an image"
}
