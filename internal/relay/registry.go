package relay

import (
	"sort"
	"sync"
)

// Registry maps a userId to its live connections. It is the single source of
// truth for presence: every other component queries it rather than caching
// online state. A user may hold any number of simultaneous connections
// (multi-device).
type Registry struct {
	mu    sync.RWMutex
	users map[string]map[*Client]bool
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string]map[*Client]bool),
	}
}

// Register adds a connection under its handshake userId. It never rejects.
// The return value reports whether the user transitioned offline -> online
// (first live connection).
func (r *Registry) Register(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := r.users[c.userID]
	if conns == nil {
		conns = make(map[*Client]bool)
		r.users[c.userID] = conns
	}
	conns[c] = true
	return len(conns) == 1
}

// Unregister removes exactly this connection. Removing a connection that was
// never registered, or was already removed, is a no-op. The return value
// reports whether the user transitioned online -> offline (last live
// connection gone).
func (r *Registry) Unregister(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.users[c.userID]
	if !ok || !conns[c] {
		return false
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(r.users, c.userID)
		return true
	}
	return false
}

// Lookup returns the live connections for a user, possibly empty.
func (r *Registry) Lookup(userID string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := r.users[userID]
	out := make([]*Client, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	return out
}

func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// OnlineUsers returns the sorted set of userIds with at least one live
// connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.users))
	for userID := range r.users {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

// UserCount returns the number of distinct online users.
func (r *Registry) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}
