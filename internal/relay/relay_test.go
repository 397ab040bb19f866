package relay

import (
	"context"
	"errors"
	"testing"
	"time"

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

type fakeChatStore struct {
	saved   []*models.ChatMessage
	saveErr error
	// order records interleaving with broadcasts through the shared log.
	log *[]string
}

func (s *fakeChatStore) SaveMessage(_ context.Context, msg *models.ChatMessage) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	msg.ID = "srv-1"
	msg.CreatedAt = time.Now()
	s.saved = append(s.saved, msg)
	if s.log != nil {
		*s.log = append(*s.log, "persist")
	}
	return nil
}

type loggingPub struct {
	capturePub
	log *[]string
}

func (p *loggingPub) Publish(scope broadcast.Scope, event string, data any) {
	p.capturePub.Publish(scope, event, data)
	if p.log != nil {
		*p.log = append(*p.log, "publish")
	}
}

type fakeDirectStore struct {
	messages map[string]*models.DirectMessage
	read     []string
}

func (s *fakeDirectStore) SaveDirectMessage(_ context.Context, msg *models.DirectMessage) error {
	msg.ID = "dm-1"
	msg.CreatedAt = time.Now()
	if s.messages == nil {
		s.messages = make(map[string]*models.DirectMessage)
	}
	s.messages[msg.ID] = msg
	return nil
}

func (s *fakeDirectStore) GetDirectMessage(_ context.Context, id string) (*models.DirectMessage, error) {
	msg, ok := s.messages[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return msg, nil
}

func (s *fakeDirectStore) MarkRead(_ context.Context, id string) error {
	s.read = append(s.read, id)
	return nil
}

type staticNames struct {
	names map[string]string
	err   error
}

func (n staticNames) DisplayName(_ context.Context, userID string) (string, error) {
	if n.err != nil {
		return "", n.err
	}
	return n.names[userID], nil
}

func TestSendPersistsBeforeBroadcast(t *testing.T) {
	var order []string
	chats := &fakeChatStore{log: &order}
	pub := &loggingPub{log: &order}
	r := New(chats, &fakeDirectStore{}, staticNames{}, pub)

	msg, err := r.Send(context.Background(), 1, "alice", "Alice", "user", "hello")
	require.NoError(t, err)

	assert.Equal(t, []string{"persist", "publish"}, order)
	require.Len(t, pub.events, 1)
	assert.Equal(t, broadcast.RoomScope(1), pub.events[0].scope)
	assert.Equal(t, models.EvNewMessage, pub.events[0].event)

	// The broadcast payload is the persisted record, server id included.
	got := pub.events[0].data.(*models.ChatMessage)
	assert.Equal(t, "srv-1", got.ID)
	assert.Equal(t, msg, got)
}

func TestSendRejectsWithoutBroadcast(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		text    string
		wantErr error
	}{
		{"blank text", "alice", "   ", apperrors.ErrInvalidInput},
		{"empty text", "alice", "", apperrors.ErrInvalidInput},
		{"missing user", "", "hello", apperrors.ErrUnresolvedUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chats := &fakeChatStore{}
			pub := &capturePub{}
			r := New(chats, &fakeDirectStore{}, staticNames{}, pub)

			_, err := r.Send(context.Background(), 1, tt.userID, "Alice", "user", tt.text)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, chats.saved)
			assert.Empty(t, pub.events)
		})
	}
}

func TestSendPersistFailureSuppressesBroadcast(t *testing.T) {
	chats := &fakeChatStore{saveErr: errors.New("db down")}
	pub := &capturePub{}
	r := New(chats, &fakeDirectStore{}, staticNames{}, pub)

	_, err := r.Send(context.Background(), 1, "alice", "Alice", "user", "hello")
	require.Error(t, err)
	assert.Empty(t, pub.events)
}

func TestSendNameResolution(t *testing.T) {
	tests := []struct {
		name     string
		supplied string
		resolver staticNames
		want     *string
	}{
		{
			name:     "supplied name wins",
			supplied: "Alice",
			resolver: staticNames{names: map[string]string{"alice": "Resolved"}},
			want:     strPtr("Alice"),
		},
		{
			name:     "empty name resolved",
			supplied: "",
			resolver: staticNames{names: map[string]string{"alice": "Resolved"}},
			want:     strPtr("Resolved"),
		},
		{
			name:     "undefined sentinel resolved",
			supplied: "undefined",
			resolver: staticNames{names: map[string]string{"alice": "Resolved"}},
			want:     strPtr("Resolved"),
		},
		{
			name:     "resolution failure tolerated",
			supplied: "",
			resolver: staticNames{err: errors.New("no such user")},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chats := &fakeChatStore{}
			r := New(chats, &fakeDirectStore{}, tt.resolver, &capturePub{})

			msg, err := r.Send(context.Background(), 1, "alice", tt.supplied, "user", "hi")
			require.NoError(t, err)
			if tt.want == nil {
				assert.Nil(t, msg.UserName)
			} else {
				require.NotNil(t, msg.UserName)
				assert.Equal(t, *tt.want, *msg.UserName)
			}
		})
	}
}

func TestSendPrivateReachesBothChannels(t *testing.T) {
	pub := &capturePub{}
	r := New(&fakeChatStore{}, &fakeDirectStore{}, staticNames{}, pub)

	msg, err := r.SendPrivate(context.Background(), "alice", "bob", nil, "hey")
	require.NoError(t, err)
	assert.Equal(t, "dm-1", msg.ID)

	require.Len(t, pub.events, 2)
	scopes := []broadcast.Scope{pub.events[0].scope, pub.events[1].scope}
	assert.Contains(t, scopes, broadcast.PrivateScope("alice"))
	assert.Contains(t, scopes, broadcast.PrivateScope("bob"))
	for _, e := range pub.events {
		assert.Equal(t, models.EvPrivateMessage, e.event)
	}
}

func TestMarkReadAuthorization(t *testing.T) {
	tests := []struct {
		name    string
		reader  string
		role    string
		wantErr error
	}{
		{"recipient may mark read", "bob", "user", nil},
		{"sender may not", "alice", "user", apperrors.ErrNotAllowed},
		{"stranger may not", "eve", "user", apperrors.ErrNotAllowed},
		{"admin may", "moderator", models.RoleAdmin, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			directs := &fakeDirectStore{}
			pub := &capturePub{}
			r := New(&fakeChatStore{}, directs, staticNames{}, pub)

			_, err := r.SendPrivate(context.Background(), "alice", "bob", nil, "hey")
			require.NoError(t, err)
			pub.events = nil

			err = r.MarkRead(context.Background(), "dm-1", tt.reader, tt.role)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, directs.read)
				assert.Empty(t, pub.events)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"dm-1"}, directs.read)
			require.Len(t, pub.events, 2)
			for _, e := range pub.events {
				assert.Equal(t, models.EvMessageRead, e.event)
			}
		})
	}
}

func TestMarkReadUnknownMessage(t *testing.T) {
	r := New(&fakeChatStore{}, &fakeDirectStore{}, staticNames{}, &capturePub{})
	err := r.MarkRead(context.Background(), "missing", "bob", "user")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func strPtr(s string) *string { return &s }
