package relay

import "sync"

// RoomManager maps a groupId to the set of currently-subscribed connections.
// Rooms exist implicitly from the first join and are removed when their last
// subscriber leaves: the manager is an ephemeral fan-out cache, not group
// membership authority. Callers are expected to have verified membership
// against the durable store before issuing a join.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool

	// Reverse index so a disconnect can purge a connection from every room
	// without scanning them all.
	conns map[*Client]map[string]bool
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms: make(map[string]map[*Client]bool),
		conns: make(map[*Client]map[string]bool),
	}
}

// Join subscribes a connection to a room, creating the room on first use.
// Joining twice is a no-op; the return value reports whether the connection
// was newly added.
func (m *RoomManager) Join(groupID string, c *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := m.rooms[groupID]
	if members == nil {
		members = make(map[*Client]bool)
		m.rooms[groupID] = members
	}
	if members[c] {
		return false
	}
	members[c] = true

	groups := m.conns[c]
	if groups == nil {
		groups = make(map[string]bool)
		m.conns[c] = groups
	}
	groups[groupID] = true
	return true
}

// Leave unsubscribes a connection from a room. Leaving a room the connection
// is not in is a no-op; the return value reports whether anything changed.
// A room left with zero members is removed.
func (m *RoomManager) Leave(groupID string, c *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(groupID, c)
}

func (m *RoomManager) leaveLocked(groupID string, c *Client) bool {
	members, ok := m.rooms[groupID]
	if !ok || !members[c] {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(m.rooms, groupID)
	}

	if groups := m.conns[c]; groups != nil {
		delete(groups, groupID)
		if len(groups) == 0 {
			delete(m.conns, c)
		}
	}
	return true
}

// RemoveConnection purges a connection from every room it belonged to and
// returns the groupIds it was removed from. Called on disconnect; calling it
// for an unknown connection is a no-op.
func (m *RoomManager) RemoveConnection(c *Client) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	groups := m.conns[c]
	out := make([]string, 0, len(groups))
	for groupID := range groups {
		if m.leaveLocked(groupID, c) {
			out = append(out, groupID)
		}
	}
	return out
}

// Members returns the connections currently subscribed to a room, possibly
// empty.
func (m *RoomManager) Members(groupID string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := m.rooms[groupID]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// Contains reports whether a connection is subscribed to a room.
func (m *RoomManager) Contains(groupID string, c *Client) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[groupID][c]
}

// RoomCount returns the number of rooms with at least one subscriber.
func (m *RoomManager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
