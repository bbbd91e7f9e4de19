package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomJoinCreatesRoom(t *testing.T) {
	rooms := NewRoomManager()
	c := newRegistryClient("U1")

	assert.True(t, rooms.Join("G1", c))
	assert.True(t, rooms.Contains("G1", c))
	assert.Equal(t, 1, rooms.RoomCount())
	require.Len(t, rooms.Members("G1"), 1)
}

func TestRoomJoinIdempotent(t *testing.T) {
	rooms := NewRoomManager()
	c := newRegistryClient("U1")

	assert.True(t, rooms.Join("G1", c))
	assert.False(t, rooms.Join("G1", c))
	assert.Len(t, rooms.Members("G1"), 1)
}

func TestRoomLeaveIdempotent(t *testing.T) {
	rooms := NewRoomManager()
	c := newRegistryClient("U1")

	rooms.Join("G1", c)
	assert.True(t, rooms.Leave("G1", c))
	assert.False(t, rooms.Leave("G1", c), "leaving a room twice is a no-op")
	assert.False(t, rooms.Leave("never-existed", c))
}

func TestRoomJoinThenLeave(t *testing.T) {
	rooms := NewRoomManager()
	c := newRegistryClient("U1")

	rooms.Join("G1", c)
	rooms.Leave("G1", c)

	assert.False(t, rooms.Contains("G1", c))
	assert.Empty(t, rooms.Members("G1"))
}

func TestRoomGarbageCollectedWhenEmpty(t *testing.T) {
	rooms := NewRoomManager()
	a := newRegistryClient("U1")
	b := newRegistryClient("U2")

	rooms.Join("G1", a)
	rooms.Join("G1", b)
	assert.Equal(t, 1, rooms.RoomCount())

	rooms.Leave("G1", a)
	assert.Equal(t, 1, rooms.RoomCount())

	rooms.Leave("G1", b)
	assert.Equal(t, 0, rooms.RoomCount(), "empty room must be removed")
}

func TestRoomRemoveConnectionPurgesAllRooms(t *testing.T) {
	rooms := NewRoomManager()
	a := newRegistryClient("U1")
	b := newRegistryClient("U2")

	rooms.Join("G1", a)
	rooms.Join("G2", a)
	rooms.Join("G2", b)

	left := rooms.RemoveConnection(a)

	assert.ElementsMatch(t, []string{"G1", "G2"}, left)
	assert.False(t, rooms.Contains("G1", a))
	assert.False(t, rooms.Contains("G2", a))
	assert.True(t, rooms.Contains("G2", b))

	// G1 had only the removed connection, so it is gone
	assert.Equal(t, 1, rooms.RoomCount())
}

func TestRoomRemoveConnectionUnknown(t *testing.T) {
	rooms := NewRoomManager()
	c := newRegistryClient("U1")

	assert.Empty(t, rooms.RemoveConnection(c))
}

func TestRoomMembersDistinctConnectionsSameUser(t *testing.T) {
	rooms := NewRoomManager()
	phone := newRegistryClient("U1")
	laptop := newRegistryClient("U1")

	rooms.Join("G1", phone)
	rooms.Join("G1", laptop)

	assert.Len(t, rooms.Members("G1"), 2, "rooms track connections, not users")
}
