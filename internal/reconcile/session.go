package reconcile

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Fetcher loads a room's persisted message history, the polling fallback for
// silent drops of the realtime channel.
type Fetcher interface {
	FetchHistory(ctx context.Context, roomID int) ([]Message, error)
}

// JoinFunc emits a joinRoom request upstream.
type JoinFunc func(roomID int)

// Session drives one client's view of a room: optimistic sends, broadcast
// reconciliation, periodic history sync, and reconnect recovery.
type Session struct {
	mu       sync.Mutex
	tl       *Timeline
	fetch    Fetcher
	join     JoinFunc
	interval time.Duration
	roomID   int
	active   bool
}

func NewSession(fetch Fetcher, join JoinFunc, interval time.Duration) *Session {
	return &Session{
		tl:       NewTimeline(),
		fetch:    fetch,
		join:     join,
		interval: interval,
	}
}

// JoinRoom switches the session to a room: the timeline resets, history is
// loaded, and the join request is emitted upstream.
func (s *Session) JoinRoom(ctx context.Context, roomID int) error {
	s.mu.Lock()
	s.tl = NewTimeline()
	s.roomID = roomID
	s.active = true
	s.mu.Unlock()

	if err := s.syncRoom(ctx, roomID); err != nil {
		return err
	}
	s.join(roomID)
	return nil
}

// LeaveRoom deactivates the session; later broadcasts are ignored.
func (s *Session) LeaveRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.tl = NewTimeline()
}

// Send records the optimistic local echo and returns it; the caller emits
// the actual send request upstream.
func (s *Session) Send(userID, userName, text string) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return Message{}, false
	}
	return s.tl.AddLocal(s.roomID, userID, userName, text), true
}

// Receive reconciles a broadcast message if it targets the active room.
func (s *Session) Receive(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || m.RoomID != s.roomID {
		return
	}
	s.tl.Apply(m)
}

// Sync re-fetches the active room's history and merges unseen entries.
func (s *Session) Sync(ctx context.Context) error {
	s.mu.Lock()
	active, roomID := s.active, s.roomID
	s.mu.Unlock()
	if !active {
		return nil
	}
	return s.syncRoom(ctx, roomID)
}

func (s *Session) syncRoom(ctx context.Context, roomID int) error {
	history, err := s.fetch.FetchHistory(ctx, roomID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active && s.roomID == roomID {
		s.tl.MergeHistory(history)
	}
	return nil
}

// Run polls on a fixed interval until the context is cancelled.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				log.Warnf("history sync failed: %v", err)
			}
		}
	}
}

// Reconnected re-joins the last active room and forces an immediate re-fetch
// after the realtime channel comes back.
func (s *Session) Reconnected(ctx context.Context) {
	s.mu.Lock()
	active, roomID := s.active, s.roomID
	s.mu.Unlock()
	if !active {
		return
	}
	s.join(roomID)
	if err := s.syncRoom(ctx, roomID); err != nil {
		log.Warnf("reconnect sync failed: %v", err)
	}
}

// Messages returns the reconciled timeline.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tl.Messages()
}
