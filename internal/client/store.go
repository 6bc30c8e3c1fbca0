// Package client implements the synchronization state for a chat
// client: the message list for the open conversation, the roster with
// its advisory last-message previews, the online set and the typing
// indicators. It reconciles updates arriving over two independent paths
// (HTTP responses and channel events) into one consistent view.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"pingme/internal/models"
)

var (
	ErrNoSelection  = errors.New("no conversation selected")
	ErrEmptyMessage = errors.New("message must have either text or image")
)

// API is the HTTP surface the store consumes.
type API interface {
	Users(ctx context.Context) ([]models.RosterEntry, error)
	Messages(ctx context.Context, peerID string) ([]models.Message, error)
	Send(ctx context.Context, peerID string, req models.SendMessageRequest) (models.Message, error)
}

// Emitter sends events on the channel. A nil Emitter disables instant
// delivery; the durable path still works.
type Emitter interface {
	Emit(evt models.Event) error
}

const defaultTypingIdle = 2 * time.Second

type Config struct {
	Self       string
	API        API
	Emitter    Emitter
	TypingIdle time.Duration // silence window before auto stopTyping
	OnChange   func()        // re-render hook, invoked after every visible mutation
}

// Store is the client sync store. Every mutation entry point runs to
// completion under one mutex; awaited calls (history fetch, durable
// send) happen outside the lock and re-validate state on resumption.
type Store struct {
	mu       sync.Mutex
	self     string
	api      API
	emitter  Emitter
	onChange func()
	idle     time.Duration

	roster   []models.RosterEntry
	messages []models.Message
	selected string
	online   map[string]bool
	typing   map[string]map[string]bool // room -> identities composing

	fetchSeq uint64

	typingActive bool
	typingRoom   string
	typingTimer  *time.Timer
}

func NewStore(cfg Config) *Store {
	idle := cfg.TypingIdle
	if idle <= 0 {
		idle = defaultTypingIdle
	}
	return &Store{
		self:     cfg.Self,
		api:      cfg.API,
		emitter:  cfg.Emitter,
		onChange: cfg.OnChange,
		idle:     idle,
		online:   make(map[string]bool),
		typing:   make(map[string]map[string]bool),
	}
}

// SetEmitter attaches the channel after construction, for the common
// case where the channel needs the store to dispatch into.
func (s *Store) SetEmitter(em Emitter) {
	s.mu.Lock()
	s.emitter = em
	s.mu.Unlock()
}

func (s *Store) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *Store) emit(evt models.Event) {
	s.mu.Lock()
	em := s.emitter
	s.mu.Unlock()
	if em != nil {
		// Best-effort: a failed emit only costs instant delivery.
		_ = em.Emit(evt)
	}
}

// RefreshRoster replaces the roster from the API.
func (s *Store) RefreshRoster(ctx context.Context) error {
	entries, err := s.api.Users(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.roster = entries
	for _, e := range entries {
		if e.Online {
			s.online[e.ID] = true
		}
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// Select makes peerID the active conversation, fetches its history and
// joins its room. An empty peerID deselects and is always safe. If the
// selection changes again while the fetch is in flight, the stale
// response is discarded rather than overwriting the newer conversation.
func (s *Store) Select(ctx context.Context, peerID string) error {
	s.mu.Lock()
	stop := s.cancelTypingLocked()
	s.selected = peerID
	s.messages = nil
	s.fetchSeq++
	seq := s.fetchSeq
	s.mu.Unlock()
	if stop != nil {
		s.emit(*stop)
	}
	s.notify()

	if peerID == "" {
		return nil
	}
	s.emit(models.Event{Type: models.EventJoinChat, Room: models.ConversationKey(s.self, peerID)})

	history, err := s.api.Messages(ctx, peerID)

	s.mu.Lock()
	if s.fetchSeq != seq || s.selected != peerID {
		// The user moved on while we were waiting; this response no
		// longer corresponds to the visible conversation.
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.messages = history
	s.mu.Unlock()
	s.notify()
	return nil
}

// Send persists the message durably and broadcasts it for instant
// delivery. The durable response is the canonical copy; a channel echo
// carrying the same ID later is a no-op.
func (s *Store) Send(ctx context.Context, req models.SendMessageRequest) (models.Message, error) {
	s.mu.Lock()
	peer := s.selected
	if peer == "" {
		s.mu.Unlock()
		return models.Message{}, ErrNoSelection
	}
	if req.Text == "" && req.Image == "" {
		s.mu.Unlock()
		return models.Message{}, ErrEmptyMessage
	}
	stop := s.cancelTypingLocked()
	s.mu.Unlock()
	if stop != nil {
		s.emit(*stop)
	}

	msg, err := s.api.Send(ctx, peer, req)
	if err != nil {
		return models.Message{}, err
	}

	s.mu.Lock()
	if s.selected == peer && !s.hasMessageLocked(msg.ID) {
		s.messages = append(s.messages, msg)
	}
	s.updateRosterLocked(peer, msg)
	s.mu.Unlock()
	s.notify()

	s.emit(models.Event{
		Type:    models.EventNewMessage,
		Room:    models.ConversationKey(s.self, peer),
		Message: &msg,
	})
	return msg, nil
}

// HandleMessageReceived applies an inbound channel message. It joins
// the visible list only when the active conversation matches and the ID
// is unseen; the roster's advisory preview is refreshed either way.
func (s *Store) HandleMessageReceived(msg models.Message) {
	counterpart := msg.Counterpart(s.self)

	s.mu.Lock()
	if s.selected != "" && s.selected == counterpart && !s.hasMessageLocked(msg.ID) {
		s.messages = append(s.messages, msg)
	}
	s.updateRosterLocked(counterpart, msg)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) hasMessageLocked(id string) bool {
	for _, m := range s.messages {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) updateRosterLocked(peerID string, msg models.Message) {
	for i := range s.roster {
		if s.roster[i].ID != peerID {
			continue
		}
		if msg.Text != "" {
			s.roster[i].LastMessage = msg.Text
		} else {
			s.roster[i].LastMessage = "Sent an image"
		}
		at := msg.CreatedAt
		s.roster[i].LastMessageAt = &at
		return
	}
}

// InputActivity reports one keystroke burst. The first call of a burst
// emits a typing event; a silence of the idle window emits stopTyping
// once. Re-typing inside the window only rearms the timer.
func (s *Store) InputActivity() {
	s.mu.Lock()
	if s.selected == "" {
		s.mu.Unlock()
		return
	}
	room := models.ConversationKey(s.self, s.selected)
	first := !s.typingActive
	s.typingActive = true
	s.typingRoom = room
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(s.idle, s.typingIdleExpired)
	s.mu.Unlock()

	if first {
		s.emit(models.Event{Type: models.EventTyping, Room: room, Identity: s.self})
	}
}

// StopTyping ends the burst immediately (explicit stop, e.g. the input
// was cleared). Safe to call when not typing.
func (s *Store) StopTyping() {
	s.mu.Lock()
	stop := s.cancelTypingLocked()
	s.mu.Unlock()
	if stop != nil {
		s.emit(*stop)
	}
}

func (s *Store) typingIdleExpired() {
	s.mu.Lock()
	stop := s.cancelTypingLocked()
	s.mu.Unlock()
	if stop != nil {
		s.emit(*stop)
	}
}

// cancelTypingLocked disarms the idle timer and, when a burst was
// active, returns the stopTyping event the caller must emit after
// releasing the lock.
func (s *Store) cancelTypingLocked() *models.Event {
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	if !s.typingActive {
		return nil
	}
	s.typingActive = false
	return &models.Event{Type: models.EventStopTyping, Room: s.typingRoom, Identity: s.self}
}

// HandleTyping and HandleStopTyping track who is composing per room.
func (s *Store) HandleTyping(room, identity string) {
	if room == "" || identity == "" || identity == s.self {
		return
	}
	s.mu.Lock()
	if s.typing[room] == nil {
		s.typing[room] = make(map[string]bool)
	}
	s.typing[room][identity] = true
	s.mu.Unlock()
	s.notify()
}

func (s *Store) HandleStopTyping(room, identity string) {
	s.mu.Lock()
	if set, ok := s.typing[room]; ok {
		delete(set, identity)
		if len(set) == 0 {
			delete(s.typing, room)
		}
	}
	s.mu.Unlock()
	s.notify()
}

// Presence handlers. None of these triggers a history re-fetch.
func (s *Store) HandleUserOnline(identity string) {
	s.mu.Lock()
	s.online[identity] = true
	s.setRosterOnlineLocked(identity, true)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) HandleUserOffline(identity string) {
	s.mu.Lock()
	delete(s.online, identity)
	s.setRosterOnlineLocked(identity, false)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) HandleOnlineUsers(identities []string) {
	s.mu.Lock()
	s.online = make(map[string]bool, len(identities))
	for _, id := range identities {
		s.online[id] = true
	}
	for i := range s.roster {
		s.roster[i].Online = s.online[s.roster[i].ID]
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Store) setRosterOnlineLocked(identity string, online bool) {
	for i := range s.roster {
		if s.roster[i].ID == identity {
			s.roster[i].Online = online
			return
		}
	}
}

// HandleDisconnect clears presence optimistically on transport loss:
// until the channel is back, everyone's presence is unknown.
func (s *Store) HandleDisconnect() {
	s.mu.Lock()
	s.online = make(map[string]bool)
	s.typing = make(map[string]map[string]bool)
	for i := range s.roster {
		s.roster[i].Online = false
	}
	s.mu.Unlock()
	s.notify()
}

// Accessors return copies so callers can render without holding state.

func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *Store) Messages() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) Roster() []models.RosterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.RosterEntry, len(s.roster))
	copy(out, s.roster)
	return out
}

// Sidebar returns the roster ranked by most recent activity.
func (s *Store) Sidebar() []models.RosterEntry {
	return RankRoster(s.Roster())
}

func (s *Store) IsOnline(identity string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online[identity]
}

// TypingPeers returns the identities currently composing in the active
// conversation.
func (s *Store) TypingPeers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == "" {
		return nil
	}
	set := s.typing[models.ConversationKey(s.self, s.selected)]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
