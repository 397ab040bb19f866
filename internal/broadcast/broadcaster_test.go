package broadcast

import (
	"errors"
	"testing"

	"auction-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	writes []models.ServerEvent
	err    error
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	if c.err != nil {
		return c.err
	}
	c.writes = append(c.writes, v.(models.ServerEvent))
	return nil
}

func TestPublishReachesOnlyScopeSubscribers(t *testing.T) {
	b := New()
	inRoom := &fakeConn{}
	elsewhere := &fakeConn{}

	b.Subscribe(RoomScope(1), "c1", inRoom)
	b.Subscribe(RoomScope(2), "c2", elsewhere)

	b.Publish(RoomScope(1), models.EvNewMessage, "payload")

	require.Len(t, inRoom.writes, 1)
	assert.Equal(t, models.EvNewMessage, inRoom.writes[0].Event)
	assert.Equal(t, "payload", inRoom.writes[0].Data)
	assert.Empty(t, elsewhere.writes)
}

func TestPublishToEmptyScopeIsNoOp(t *testing.T) {
	b := New()
	b.Publish(AuctionScope("a1"), models.EvBidPlaced, nil)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	conn := &fakeConn{}

	b.Subscribe(RoomScope(1), "c1", conn)
	b.Unsubscribe(RoomScope(1), "c1")
	b.Publish(RoomScope(1), models.EvNewMessage, nil)

	assert.Empty(t, conn.writes)
	assert.Zero(t, b.SubscriberCount(RoomScope(1)))
}

func TestDropClearsEveryScope(t *testing.T) {
	b := New()
	conn := &fakeConn{}

	b.Subscribe(GlobalScope, "c1", conn)
	b.Subscribe(RoomScope(1), "c1", conn)
	b.Subscribe(PrivateScope("alice"), "c1", conn)
	b.Drop("c1")

	b.Publish(GlobalScope, models.EvAuctionUpdated, nil)
	b.Publish(RoomScope(1), models.EvNewMessage, nil)
	b.Publish(PrivateScope("alice"), models.EvPrivateMessage, nil)

	assert.Empty(t, conn.writes)
	assert.Zero(t, b.SubscriberCount(GlobalScope))
}

func TestWriteFailureDoesNotStopFanOut(t *testing.T) {
	b := New()
	broken := &fakeConn{err: errors.New("connection reset")}
	healthy := &fakeConn{}

	b.Subscribe(RoomScope(1), "broken", broken)
	b.Subscribe(RoomScope(1), "healthy", healthy)
	b.Publish(RoomScope(1), models.EvNewMessage, "hi")

	assert.Len(t, healthy.writes, 1)
}

func TestScopeNames(t *testing.T) {
	assert.Equal(t, Scope("room:0"), RoomScope(0))
	assert.Equal(t, Scope("auction:a1"), AuctionScope("a1"))
	assert.Equal(t, Scope("private:alice"), PrivateScope("alice"))
	assert.NotEqual(t, RoomScope(1), AuctionScope("1"))
}

func TestSubscriberCount(t *testing.T) {
	b := New()
	b.Subscribe(GlobalScope, "c1", &fakeConn{})
	b.Subscribe(GlobalScope, "c2", &fakeConn{})
	b.Subscribe(GlobalScope, "c2", &fakeConn{}) // re-subscribe is idempotent

	assert.Equal(t, 2, b.SubscriberCount(GlobalScope))
}
