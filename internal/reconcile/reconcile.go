// Package reconcile merges optimistically displayed messages with the
// server's authoritative broadcasts and polling results. The sending user
// sees a provisional entry immediately; every later sighting of the same
// message — broadcast, duplicate delivery, poll — converges onto one
// displayed record through a single dedupe/merge routine.
package reconcile

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultTolerance is the timestamp proximity window used when matching a
// server record against a provisional entry or a recently sent descriptor.
const DefaultTolerance = 5 * time.Second

// recentBufferSize caps the rolling buffer of recently sent descriptors.
const recentBufferSize = 20

// Message is one displayed timeline entry. Provisional entries carry a
// locally generated id until the authoritative record replaces them.
type Message struct {
	ID          string
	RoomID      int
	UserID      string
	UserName    string
	Text        string
	Timestamp   time.Time
	Provisional bool
}

type sentDescriptor struct {
	roomID   int
	text     string
	sentAt   time.Time
	userID   string
	userName string
}

// Timeline holds the reconciled message list for one room.
type Timeline struct {
	tolerance time.Duration
	messages  []Message
	index     map[string]int // message id -> position
	recent    []sentDescriptor
	now       func() time.Time
}

func NewTimeline() *Timeline {
	return &Timeline{
		tolerance: DefaultTolerance,
		index:     make(map[string]int),
		now:       time.Now,
	}
}

// AddLocal records an optimistic local echo for a message the user just
// sent, plus a descriptor in the recent-sends buffer covering the race where
// the server broadcast arrives before the provisional entry would match.
func (t *Timeline) AddLocal(roomID int, userID, userName, text string) Message {
	m := Message{
		ID:          "local-" + uuid.New().String(),
		RoomID:      roomID,
		UserID:      userID,
		UserName:    userName,
		Text:        text,
		Timestamp:   t.now(),
		Provisional: true,
	}
	t.append(m)

	t.recent = append(t.recent, sentDescriptor{
		roomID:   roomID,
		text:     text,
		sentAt:   m.Timestamp,
		userID:   userID,
		userName: userName,
	})
	if len(t.recent) > recentBufferSize {
		t.recent = t.recent[len(t.recent)-recentBufferSize:]
	}
	return m
}

// Apply reconciles one server-delivered record into the timeline:
//
//  1. a known id is replaced in place (idempotent under duplicate delivery);
//  2. a matching provisional entry is replaced, preserving locally known
//     author metadata the broadcast omitted;
//  3. a match in the recent-sends buffer is merged and appended;
//  4. otherwise the record is appended, unless it is a near-duplicate of an
//     already displayed entry.
func (t *Timeline) Apply(in Message) {
	if pos, ok := t.index[in.ID]; ok {
		t.fillAuthor(&in, t.messages[pos])
		in.Provisional = false
		t.messages[pos] = in
		return
	}

	if pos, ok := t.findProvisional(in); ok {
		old := t.messages[pos]
		t.fillAuthor(&in, old)
		in.Provisional = false
		t.messages[pos] = in
		delete(t.index, old.ID)
		t.index[in.ID] = pos
		t.dropRecent(in)
		return
	}

	if desc, ok := t.takeRecent(in); ok {
		if in.UserID == "" {
			in.UserID = desc.userID
		}
		if in.UserName == "" {
			in.UserName = desc.userName
		}
		t.append(in)
		return
	}

	if t.isNearDuplicate(in) {
		return
	}
	t.append(in)
}

// MergeHistory reconciles a polled history snapshot: every entry runs
// through the same routine as a live broadcast, then the timeline is
// restored to chronological order.
func (t *Timeline) MergeHistory(history []Message) {
	for _, m := range history {
		t.Apply(m)
	}
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].Timestamp.Before(t.messages[j].Timestamp)
	})
	for i, m := range t.messages {
		t.index[m.ID] = i
	}
}

// Messages returns the current timeline in display order.
func (t *Timeline) Messages() []Message {
	return append([]Message(nil), t.messages...)
}

func (t *Timeline) append(m Message) {
	t.index[m.ID] = len(t.messages)
	t.messages = append(t.messages, m)
}

func (t *Timeline) within(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < t.tolerance
}

// findProvisional prefers a strict author+text match and falls back to a
// relaxed text-only match, both within the timestamp tolerance.
func (t *Timeline) findProvisional(in Message) (int, bool) {
	for i, m := range t.messages {
		if m.Provisional && m.UserID == in.UserID && m.Text == in.Text && t.within(m.Timestamp, in.Timestamp) {
			return i, true
		}
	}
	for i, m := range t.messages {
		if m.Provisional && m.Text == in.Text && t.within(m.Timestamp, in.Timestamp) {
			return i, true
		}
	}
	return 0, false
}

func (t *Timeline) fillAuthor(in *Message, known Message) {
	if in.UserID == "" {
		in.UserID = known.UserID
	}
	if in.UserName == "" {
		in.UserName = known.UserName
	}
}

func (t *Timeline) takeRecent(in Message) (sentDescriptor, bool) {
	for i, d := range t.recent {
		if d.roomID == in.RoomID && d.text == in.Text && t.within(d.sentAt, in.Timestamp) {
			t.recent = append(t.recent[:i], t.recent[i+1:]...)
			return d, true
		}
	}
	return sentDescriptor{}, false
}

func (t *Timeline) dropRecent(in Message) {
	for i, d := range t.recent {
		if d.roomID == in.RoomID && d.text == in.Text && t.within(d.sentAt, in.Timestamp) {
			t.recent = append(t.recent[:i], t.recent[i+1:]...)
			return
		}
	}
}

func (t *Timeline) isNearDuplicate(in Message) bool {
	for _, m := range t.messages {
		if !m.Provisional && m.UserID == in.UserID && m.Text == in.Text && t.within(m.Timestamp, in.Timestamp) {
			return true
		}
	}
	return false
}
