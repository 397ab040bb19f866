package registry

import (
	"testing"

	"auction-backend/internal/apperrors"
	"auction-backend/internal/broadcast"
	"auction-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	scope broadcast.Scope
	event string
	data  any
}

type capturePub struct {
	events []published
}

func (p *capturePub) Publish(scope broadcast.Scope, event string, data any) {
	p.events = append(p.events, published{scope: scope, event: event, data: data})
}

func (p *capturePub) byEvent(event string) []published {
	var out []published
	for _, e := range p.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func TestDefaultRooms(t *testing.T) {
	r := New(&capturePub{})

	rooms := r.ListRooms()
	require.Len(t, rooms, 4)
	assert.Equal(t, 0, rooms[0].ID)
	assert.Equal(t, "General", rooms[0].Name)
	assert.Equal(t, "Room 3", rooms[3].Name)
	for _, rm := range rooms {
		assert.Zero(t, rm.UserCount)
	}
}

func TestJoinSwitchesRooms(t *testing.T) {
	pub := &capturePub{}
	r := New(pub)
	alice := Member{ID: "alice", Name: "Alice"}

	require.NoError(t, r.Join(alice, 1))
	require.NoError(t, r.Join(alice, 2))

	// One leave for room 1, then one join for room 2, nothing else.
	left := pub.byEvent(models.EvUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, broadcast.RoomScope(1), left[0].scope)
	joined := pub.byEvent(models.EvUserJoined)
	require.Len(t, joined, 2)
	assert.Equal(t, broadcast.RoomScope(2), joined[1].scope)

	current, ok := r.CurrentRoom("alice")
	require.True(t, ok)
	assert.Equal(t, 2, current)

	rooms := r.ListRooms()
	assert.Zero(t, rooms[1].UserCount)
	assert.Equal(t, 1, rooms[2].UserCount)
	assert.Equal(t, []string{"Alice"}, rooms[2].Users)
}

func TestRejoinSameRoomDoesNotDuplicate(t *testing.T) {
	pub := &capturePub{}
	r := New(pub)
	alice := Member{ID: "alice", Name: "Alice"}

	require.NoError(t, r.Join(alice, 0))
	require.NoError(t, r.Join(alice, 0))

	assert.Empty(t, pub.byEvent(models.EvUserLeft))
	rooms := r.ListRooms()
	assert.Equal(t, 1, rooms[0].UserCount)
}

func TestJoinRejectsUnresolvedUser(t *testing.T) {
	pub := &capturePub{}
	r := New(pub)

	err := r.Join(Member{Name: "ghost"}, 1)
	assert.ErrorIs(t, err, apperrors.ErrUnresolvedUser)
	assert.Empty(t, pub.events)
}

func TestDynamicRoomLifecycle(t *testing.T) {
	pub := &capturePub{}
	r := New(pub)
	alice := Member{ID: "alice", Name: "Alice"}

	require.NoError(t, r.Join(alice, 7))
	assert.True(t, r.Exists(7))

	rooms := r.ListRooms()
	require.Len(t, rooms, 5)
	assert.Equal(t, "Room 7", rooms[4].Name)

	r.Leave("alice", "Alice", 7)
	assert.False(t, r.Exists(7))

	// Core rooms survive becoming empty.
	require.NoError(t, r.Join(alice, 1))
	r.Leave("alice", "Alice", 1)
	assert.True(t, r.Exists(1))
}

func TestLeaveNotifiesRemainingMembers(t *testing.T) {
	pub := &capturePub{}
	r := New(pub)

	require.NoError(t, r.Join(Member{ID: "alice", Name: "Alice"}, 1))
	require.NoError(t, r.Join(Member{ID: "bob", Name: "Bob"}, 1))
	r.Leave("alice", "Alice", 1)

	left := pub.byEvent(models.EvUserLeft)
	require.Len(t, left, 1)
	ev := left[0].data.(models.PresenceEvent)
	assert.Equal(t, "alice", ev.UserID)
	assert.Equal(t, 1, ev.UserCount)
	assert.Equal(t, []string{"Bob"}, ev.Users)

	_, ok := r.CurrentRoom("alice")
	assert.False(t, ok)
}

func TestDisconnect(t *testing.T) {
	pub := &capturePub{}
	r := New(pub)

	require.NoError(t, r.Join(Member{ID: "alice", Name: "Alice"}, 2))
	r.Disconnect("alice", "Alice")

	require.Len(t, pub.byEvent(models.EvUserLeft), 1)
	_, ok := r.CurrentRoom("alice")
	assert.False(t, ok)

	// Disconnecting a user in no room is a no-op.
	r.Disconnect("nobody", "")
	assert.Len(t, pub.byEvent(models.EvUserLeft), 1)
}
