// Package presence tracks which identities currently have a live
// connection. The registry is the process-wide source of truth for the
// online set; presence is advisory, so no operation here can fail.
package presence

import (
	"sort"
	"sync"
)

// Registry binds identities to their most recent connection.
//
// Policy: one active connection per identity, last-writer-wins. A second
// Register for the same identity silently supersedes the first, and the
// superseded connection's Unregister becomes a no-op. The API reports
// online transitions so callers can broadcast them, keeping the door
// open for real multi-connection fan-out later.
type Registry struct {
	mu         sync.Mutex
	byIdentity map[string]string // identity -> latest connection id
	byConn     map[string]string // connection id -> identity
}

func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[string]string),
		byConn:     make(map[string]string),
	}
}

// Register binds identity to connID, replacing any previous binding for
// the identity. It reports whether the identity just came online.
func (r *Registry) Register(identity, connID string) (cameOnline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, wasOnline := r.byIdentity[identity]
	if wasOnline && old != connID {
		delete(r.byConn, old)
	}
	r.byIdentity[identity] = connID
	r.byConn[connID] = identity
	return !wasOnline
}

// Unregister removes the binding for connID if it is still current. It
// is a silent no-op for unknown or superseded connections: a stale
// unregister must never evict a newer connection of the same identity.
// It reports the bound identity and whether it just went offline.
func (r *Registry) Unregister(connID string) (identity string, wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	identity, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	if r.byIdentity[identity] == connID {
		delete(r.byIdentity, identity)
		return identity, true
	}
	return identity, false
}

// IsOnline reports whether the identity has a live connection.
func (r *Registry) IsOnline(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byIdentity[identity]
	return ok
}

// Snapshot returns the current online set, sorted for determinism.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.byIdentity))
	for identity := range r.byIdentity {
		out = append(out, identity)
	}
	sort.Strings(out)
	return out
}
