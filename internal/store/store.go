// Package store defines the durable storage collaborators consumed by
// the services layer. Implementations live in the postgres and memory
// subpackages.
package store

import (
	"context"
	"errors"

	"pingme/internal/models"
)

var (
	// ErrUserExists is returned by Users.Create on a username collision.
	ErrUserExists = errors.New("username already exists")
	// ErrNotFound is returned when a looked-up record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptyMessage is returned by Messages.Create when neither text
	// nor image is present. Nothing is written in that case.
	ErrEmptyMessage = errors.New("message must have either text or image")
)

type Users interface {
	Create(ctx context.Context, username, passwordHash, displayName string) (models.User, error)
	ByUsername(ctx context.Context, username string) (models.User, error)
	ByID(ctx context.Context, id string) (models.User, error)
	// ListExcept returns all users except the given one, for the roster.
	ListExcept(ctx context.Context, id string) ([]models.User, error)
	UpdateAvatar(ctx context.Context, id, avatarURL string) (models.User, error)
}

type Messages interface {
	// Create persists a message and returns the canonical copy with its
	// assigned ID and timestamp.
	Create(ctx context.Context, senderID, receiverID, text, image string) (models.Message, error)
	// Between returns the full conversation between two users ordered by
	// created_at ascending.
	Between(ctx context.Context, a, b string) ([]models.Message, error)
	// LastBetween returns the most recent message of the conversation, or
	// nil when there is none.
	LastBetween(ctx context.Context, a, b string) (*models.Message, error)
}
