package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu      sync.Mutex
	history map[int][]Message
	err     error
	calls   int
}

func (f *fakeFetcher) FetchHistory(_ context.Context, roomID int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.history[roomID], nil
}

type joinRecorder struct {
	rooms []int
}

func (j *joinRecorder) join(roomID int) {
	j.rooms = append(j.rooms, roomID)
}

func TestJoinRoomLoadsHistoryAndEmitsJoin(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fetch := &fakeFetcher{history: map[int][]Message{
		1: {
			{ID: "srv-1", RoomID: 1, UserID: "bob", Text: "earlier", Timestamp: base},
		},
	}}
	jr := &joinRecorder{}
	s := NewSession(fetch, jr.join, time.Minute)

	require.NoError(t, s.JoinRoom(context.Background(), 1))

	assert.Equal(t, []int{1}, jr.rooms)
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-1", msgs[0].ID)
}

func TestJoinRoomFetchFailure(t *testing.T) {
	fetch := &fakeFetcher{err: errors.New("network down")}
	jr := &joinRecorder{}
	s := NewSession(fetch, jr.join, time.Minute)

	err := s.JoinRoom(context.Background(), 1)
	require.Error(t, err)
	assert.Empty(t, jr.rooms)
}

func TestSwitchingRoomsResetsTimeline(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	fetch := &fakeFetcher{history: map[int][]Message{
		1: {{ID: "r1-1", RoomID: 1, UserID: "bob", Text: "room one", Timestamp: base}},
		2: {{ID: "r2-1", RoomID: 2, UserID: "bob", Text: "room two", Timestamp: base}},
	}}
	jr := &joinRecorder{}
	s := NewSession(fetch, jr.join, time.Minute)

	require.NoError(t, s.JoinRoom(context.Background(), 1))
	require.NoError(t, s.JoinRoom(context.Background(), 2))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "r2-1", msgs[0].ID)
}

func TestReceiveFiltersByActiveRoom(t *testing.T) {
	fetch := &fakeFetcher{}
	s := NewSession(fetch, func(int) {}, time.Minute)
	require.NoError(t, s.JoinRoom(context.Background(), 1))

	s.Receive(Message{ID: "other", RoomID: 2, UserID: "bob", Text: "wrong room", Timestamp: time.Now()})
	assert.Empty(t, s.Messages())

	s.Receive(Message{ID: "mine", RoomID: 1, UserID: "bob", Text: "right room", Timestamp: time.Now()})
	assert.Len(t, s.Messages(), 1)

	s.LeaveRoom()
	s.Receive(Message{ID: "late", RoomID: 1, UserID: "bob", Text: "after leave", Timestamp: time.Now()})
	assert.Empty(t, s.Messages())
}

func TestSendRequiresActiveRoom(t *testing.T) {
	s := NewSession(&fakeFetcher{}, func(int) {}, time.Minute)

	_, ok := s.Send("alice", "Alice", "hello")
	assert.False(t, ok)

	require.NoError(t, s.JoinRoom(context.Background(), 1))
	m, ok := s.Send("alice", "Alice", "hello")
	require.True(t, ok)
	assert.True(t, m.Provisional)
	assert.Equal(t, 1, m.RoomID)
}

func TestSyncConvergesOptimisticSendWithPolledHistory(t *testing.T) {
	fetch := &fakeFetcher{history: map[int][]Message{1: nil}}
	jr := &joinRecorder{}
	s := NewSession(fetch, jr.join, time.Minute)
	require.NoError(t, s.JoinRoom(context.Background(), 1))

	local, ok := s.Send("alice", "Alice", "hello")
	require.True(t, ok)

	// The poll returns the persisted record for the optimistic send.
	fetch.mu.Lock()
	fetch.history[1] = []Message{{
		ID:        "srv-1",
		RoomID:    1,
		UserID:    "alice",
		Text:      "hello",
		Timestamp: local.Timestamp.Add(time.Second),
	}}
	fetch.mu.Unlock()

	require.NoError(t, s.Sync(context.Background()))

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "srv-1", msgs[0].ID)
	assert.False(t, msgs[0].Provisional)
}

func TestSyncInactiveIsNoOp(t *testing.T) {
	fetch := &fakeFetcher{}
	s := NewSession(fetch, func(int) {}, time.Minute)

	require.NoError(t, s.Sync(context.Background()))
	assert.Zero(t, fetch.calls)
}

func TestReconnectedRejoinsAndResyncs(t *testing.T) {
	fetch := &fakeFetcher{history: map[int][]Message{3: nil}}
	jr := &joinRecorder{}
	s := NewSession(fetch, jr.join, time.Minute)
	require.NoError(t, s.JoinRoom(context.Background(), 3))

	fetch.mu.Lock()
	fetch.history[3] = []Message{{ID: "missed", RoomID: 3, UserID: "bob", Text: "while offline", Timestamp: time.Now()}}
	fetch.mu.Unlock()

	s.Reconnected(context.Background())

	assert.Equal(t, []int{3, 3}, jr.rooms)
	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "missed", msgs[0].ID)
}

func TestReconnectedInactiveIsNoOp(t *testing.T) {
	jr := &joinRecorder{}
	s := NewSession(&fakeFetcher{}, jr.join, time.Minute)

	s.Reconnected(context.Background())
	assert.Empty(t, jr.rooms)
}
