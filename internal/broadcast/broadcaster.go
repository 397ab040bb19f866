package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"auction-backend/internal/models"
	"auction-backend/internal/utils"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Scope identifies a delivery target: a chat room, an auction's watchers, a
// user's private channel, or every connected socket.
type Scope string

const GlobalScope Scope = "global"

func RoomScope(roomID int) Scope      { return Scope(fmt.Sprintf("room:%d", roomID)) }
func AuctionScope(auctionID string) Scope { return Scope("auction:" + auctionID) }
func PrivateScope(userID string) Scope    { return Scope("private:" + userID) }

// Conn is the write side of a subscribed connection.
type Conn interface {
	WriteJSON(v interface{}) error
}

// WSConn wraps a fiber websocket connection with a write mutex. Fiber's
// websocket implementation is not safe for concurrent writes, so every
// broadcast and direct reply must go through this wrapper.
type WSConn struct {
	mu sync.Mutex
	c  *websocket.Conn
}

func NewWSConn(c *websocket.Conn) *WSConn {
	return &WSConn{c: c}
}

func (w *WSConn) WriteJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteJSON(v)
}

// Broadcaster fans scoped events out to subscribed connections. Delivery is
// best-effort: a write failure is logged and the read loop handles the
// disconnection. When a Redis client is attached, every published event is
// mirrored through a pub/sub channel so peer instances deliver it to their
// own sockets.
type Broadcaster struct {
	mu sync.RWMutex
	// scope -> connID -> conn
	scopes map[Scope]map[string]Conn
	// connID -> scopes the connection is subscribed to
	conns map[string]map[Scope]struct{}

	instanceID string
	rdb        *redis.Client
	channel    string
}

type mirrorEnvelope struct {
	Origin string `json:"origin"`
	Scope  Scope  `json:"scope"`
	Event  string `json:"event"`
	Data   json.RawMessage `json:"data"`
}

func New() *Broadcaster {
	return &Broadcaster{
		scopes:     make(map[Scope]map[string]Conn),
		conns:      make(map[string]map[Scope]struct{}),
		instanceID: uuid.New().String(),
		channel:    "realtime:events",
	}
}

// AttachRedis enables the cross-instance mirror and starts the subscriber
// loop. Remote events are delivered to local subscribers only; events this
// instance published are skipped by origin id.
func (b *Broadcaster) AttachRedis(ctx context.Context, rdb *redis.Client) {
	b.rdb = rdb
	go b.subscribeLoop(ctx)
}

func (b *Broadcaster) subscribeLoop(ctx context.Context) {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var env mirrorEnvelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			utils.LogError(err, "broadcast mirror decode")
			continue
		}
		if env.Origin == b.instanceID {
			continue
		}
		b.deliver(env.Scope, models.ServerEvent{Event: env.Event, Data: env.Data})
	}
}

// Subscribe adds a connection to a scope.
func (b *Broadcaster) Subscribe(scope Scope, connID string, c Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.scopes[scope]; !ok {
		b.scopes[scope] = make(map[string]Conn)
	}
	b.scopes[scope][connID] = c

	if _, ok := b.conns[connID]; !ok {
		b.conns[connID] = make(map[Scope]struct{})
	}
	b.conns[connID][scope] = struct{}{}
}

// Unsubscribe removes a connection from a scope.
func (b *Broadcaster) Unsubscribe(scope Scope, connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if conns, ok := b.scopes[scope]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(b.scopes, scope)
		}
	}
	if scopes, ok := b.conns[connID]; ok {
		delete(scopes, scope)
	}
}

// Drop removes a connection from every scope it is subscribed to.
func (b *Broadcaster) Drop(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for scope := range b.conns[connID] {
		if conns, ok := b.scopes[scope]; ok {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(b.scopes, scope)
			}
		}
	}
	delete(b.conns, connID)
}

// Publish delivers an event to every connection in the scope and mirrors it
// to peer instances when Redis is attached. No subscribers is not an error.
func (b *Broadcaster) Publish(scope Scope, event string, data any) {
	b.deliver(scope, models.ServerEvent{Event: event, Data: data})

	if b.rdb != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			utils.LogError(err, "broadcast mirror encode")
			return
		}
		payload, _ := json.Marshal(mirrorEnvelope{
			Origin: b.instanceID,
			Scope:  scope,
			Event:  event,
			Data:   raw,
		})
		if err := b.rdb.Publish(context.Background(), b.channel, payload).Err(); err != nil {
			utils.LogError(err, "broadcast mirror publish")
		}
	}
}

func (b *Broadcaster) deliver(scope Scope, ev models.ServerEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for connID, conn := range b.scopes[scope] {
		if err := conn.WriteJSON(ev); err != nil {
			log.WithFields(log.Fields{"conn_id": connID, "scope": scope}).
				Warnf("broadcast write failed: %v", err)
		}
	}
}

// SubscriberCount reports how many connections are subscribed to a scope.
func (b *Broadcaster) SubscriberCount(scope Scope) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.scopes[scope])
}
