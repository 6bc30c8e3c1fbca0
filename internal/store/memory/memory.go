// Package memory implements the store interfaces with in-process maps.
// It backs tests and the STORAGE_BACKEND=memory development mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"pingme/internal/models"
	"pingme/internal/store"

	"github.com/google/uuid"
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]models.User // id -> user
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]models.User)}
}

func (s *UserStore) Create(ctx context.Context, username, passwordHash, displayName string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return models.User{}, store.ErrUserExists
		}
	}
	u := models.User{
		ID:           uuid.NewString(),
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *UserStore) ByUsername(ctx context.Context, username string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, store.ErrNotFound
}

func (s *UserStore) ByID(ctx context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func (s *UserStore) ListExcept(ctx context.Context, id string) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		if u.ID == id {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *UserStore) UpdateAvatar(ctx context.Context, id, avatarURL string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	u.AvatarURL = avatarURL
	s.users[id] = u
	return u, nil
}

type MessageStore struct {
	mu sync.RWMutex
	// conversation key -> messages ordered by creation
	conversations map[string][]models.Message
}

func NewMessageStore() *MessageStore {
	return &MessageStore{conversations: make(map[string][]models.Message)}
}

func (s *MessageStore) Create(ctx context.Context, senderID, receiverID, text, image string) (models.Message, error) {
	if text == "" && image == "" {
		return models.Message{}, store.ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := models.ConversationKey(senderID, receiverID)
	now := time.Now().UTC()
	// createdAt is non-decreasing within a conversation even if the
	// wall clock stalls between two quick sends.
	if msgs := s.conversations[key]; len(msgs) > 0 {
		if last := msgs[len(msgs)-1].CreatedAt; now.Before(last) {
			now = last
		}
	}
	m := models.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
		CreatedAt:  now,
	}
	s.conversations[key] = append(s.conversations[key], m)
	return m, nil
}

func (s *MessageStore) Between(ctx context.Context, a, b string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.conversations[models.ConversationKey(a, b)]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MessageStore) LastBetween(ctx context.Context, a, b string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.conversations[models.ConversationKey(a, b)]
	if len(msgs) == 0 {
		return nil, nil
	}
	m := msgs[len(msgs)-1]
	return &m, nil
}
