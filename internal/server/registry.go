// Package server tracks which connections belong to which user via the
// Registry type, the single source of truth for reachability.
package server

import "sync"

// Registry maps user identities to their live connections. A user is online
// iff their connection set is non-empty; multiple simultaneous connections
// per user are expected (several devices or tabs).
//
// All operations take the same lock, so two connect/disconnect events for the
// same user can never race into an inconsistent online/offline judgment. The
// underlying maps never leak: callers only ever see snapshot slices.
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[*Client]struct{}
	conns map[string]connEntry
}

type connEntry struct {
	client *Client
	userID string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]map[*Client]struct{}),
		conns: make(map[string]connEntry),
	}
}

// Register files the connection under userID and reports whether it was the
// user's first live connection. Registering an already-registered connection
// is a no-op.
func (r *Registry) Register(userID string, c *Client) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[c.id]; exists {
		return false
	}
	set, ok := r.users[userID]
	if !ok {
		set = make(map[*Client]struct{})
		r.users[userID] = set
	}
	set[c] = struct{}{}
	r.conns[c.id] = connEntry{client: c, userID: userID}
	return len(set) == 1
}

// Deregister removes the connection from whichever user entry holds it and
// reports whether it was that user's last live connection. Unknown
// connections are swallowed silently, which makes double-disconnect safe.
func (r *Registry) Deregister(connID string) (userID string, last bool, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		return "", false, false
	}
	delete(r.conns, connID)

	userID = entry.userID
	set, ok := r.users[userID]
	if !ok {
		return userID, false, true
	}
	delete(set, entry.client)
	if len(set) == 0 {
		delete(r.users, userID)
		return userID, true, true
	}
	return userID, false, true
}

// ConnectionsFor returns a snapshot of the user's live connections, empty
// when the user is unknown or offline.
func (r *Registry) ConnectionsFor(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	if len(set) == 0 {
		return nil
	}
	conns := make([]*Client, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// OnlineCount returns the number of users with at least one live connection.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
