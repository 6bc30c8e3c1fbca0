// Package postgres implements the store interfaces over a pgx pool.
package postgres

import (
	"context"
	"errors"

	"pingme/internal/models"
	"pingme/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

func (s *UserStore) Create(ctx context.Context, username, passwordHash, displayName string) (models.User, error) {
	var u models.User
	query := `INSERT INTO users (id, username, password_hash, display_name)
	          VALUES ($1, $2, $3, $4)
	          RETURNING id, username, display_name, avatar_url, created_at`
	err := s.pool.QueryRow(ctx, query, uuid.NewString(), username, passwordHash, displayName).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, store.ErrUserExists
		}
		return models.User{}, err
	}
	return u, nil
}

func (s *UserStore) ByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	query := `SELECT id, username, password_hash, display_name, avatar_url, created_at
	          FROM users WHERE username = $1`
	err := s.pool.QueryRow(ctx, query, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DisplayName, &u.AvatarURL, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, store.ErrNotFound
	}
	return u, err
}

func (s *UserStore) ByID(ctx context.Context, id string) (models.User, error) {
	var u models.User
	query := `SELECT id, username, password_hash, display_name, avatar_url, created_at
	          FROM users WHERE id = $1`
	err := s.pool.QueryRow(ctx, query, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.DisplayName, &u.AvatarURL, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, store.ErrNotFound
	}
	return u, err
}

func (s *UserStore) ListExcept(ctx context.Context, id string) ([]models.User, error) {
	query := `SELECT id, username, display_name, avatar_url, created_at
	          FROM users WHERE id <> $1 ORDER BY username`
	rows, err := s.pool.Query(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *UserStore) UpdateAvatar(ctx context.Context, id, avatarURL string) (models.User, error) {
	var u models.User
	query := `UPDATE users SET avatar_url = $2 WHERE id = $1
	          RETURNING id, username, display_name, avatar_url, created_at`
	err := s.pool.QueryRow(ctx, query, id, avatarURL).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarURL, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.User{}, store.ErrNotFound
	}
	return u, err
}

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func (s *MessageStore) Create(ctx context.Context, senderID, receiverID, text, image string) (models.Message, error) {
	if text == "" && image == "" {
		return models.Message{}, store.ErrEmptyMessage
	}
	m := models.Message{SenderID: senderID, ReceiverID: receiverID, Text: text, Image: image}
	query := `INSERT INTO messages (id, sender_id, receiver_id, text, image)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id, created_at`
	err := s.pool.QueryRow(ctx, query, uuid.NewString(), senderID, receiverID, text, image).
		Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return models.Message{}, err
	}
	return m, nil
}

func (s *MessageStore) Between(ctx context.Context, a, b string) ([]models.Message, error) {
	query := `SELECT id, sender_id, receiver_id, text, image, created_at
	          FROM messages
	          WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
	          ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query, a, b)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *MessageStore) LastBetween(ctx context.Context, a, b string) (*models.Message, error) {
	var m models.Message
	query := `SELECT id, sender_id, receiver_id, text, image, created_at
	          FROM messages
	          WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
	          ORDER BY created_at DESC LIMIT 1`
	err := s.pool.QueryRow(ctx, query, a, b).
		Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.Image, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}
