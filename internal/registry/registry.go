package registry

import (
	"fmt"
	"sort"
	"sync"

	"auction-backend/internal/apperrors"
	"auction-backend/internal/broadcast"
	"auction-backend/internal/models"

	log "github.com/sirupsen/logrus"
)

// Publisher is the slice of the broadcaster the registry needs to emit
// presence notifications.
type Publisher interface {
	Publish(scope broadcast.Scope, event string, data any)
}

// Member is a connected user as seen by a room roster.
type Member struct {
	ID   string
	Name string
	Role string
}

type room struct {
	name    string
	members []Member // join order
}

func (r *room) names() []string {
	names := make([]string, 0, len(r.members))
	for _, m := range r.members {
		names = append(names, m.Name)
	}
	return names
}

func (r *room) remove(userID string) {
	kept := r.members[:0]
	for _, m := range r.members {
		if m.ID != userID {
			kept = append(kept, m)
		}
	}
	r.members = kept
}

// defaultRooms is the fixed core set. These entries survive becoming empty;
// rooms created on demand beyond them are deleted once their roster empties.
var defaultRooms = map[int]string{
	0: "General",
	1: "Room 1",
	2: "Room 2",
	3: "Room 3",
}

// Registry tracks which users occupy which chat rooms. A user occupies at
// most one room at a time: joining a new room implicitly leaves the previous
// one. All state is process-local; presence is reconstructed from live
// connections, never persisted.
type Registry struct {
	mu       sync.Mutex
	rooms    map[int]*room
	userRoom map[string]int // inverse index: user id -> current room
	pub      Publisher
}

func New(pub Publisher) *Registry {
	r := &Registry{
		rooms:    make(map[int]*room),
		userRoom: make(map[string]int),
		pub:      pub,
	}
	for id, name := range defaultRooms {
		r.rooms[id] = &room{name: name}
	}
	return r
}

// ListRooms returns a snapshot of every known room, sorted by id.
func (r *Registry) ListRooms() []models.RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]models.RoomInfo, 0, len(r.rooms))
	for id, rm := range r.rooms {
		infos = append(infos, models.RoomInfo{
			ID:        id,
			Name:      rm.name,
			UserCount: len(rm.members),
			Users:     rm.names(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// Exists reports whether a room currently has a registry entry.
func (r *Registry) Exists(roomID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.rooms[roomID]
	return ok
}

// CurrentRoom returns the room the user presently occupies, if any.
func (r *Registry) CurrentRoom(userID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.userRoom[userID]
	return id, ok
}

// Join adds the member to roomID, implicitly leaving any previous room first.
// Both the removal from the old roster and the insertion into the new one
// happen under one lock, so the user-set and inverse index never disagree.
// A member with no resolvable id is rejected with ErrUnresolvedUser; the
// caller logs it and acknowledges the error, nothing else changes.
func (r *Registry) Join(m Member, roomID int) error {
	if m.ID == "" {
		return apperrors.ErrUnresolvedUser
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.userRoom[m.ID]; ok && prev != roomID {
		r.leaveLocked(m.ID, m.Name, prev)
	}

	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{name: fmt.Sprintf("Room %d", roomID)}
		r.rooms[roomID] = rm
		log.WithField("room_id", roomID).Info("room created on demand")
	}

	rm.remove(m.ID) // re-join of the same room must not duplicate the entry
	rm.members = append(rm.members, m)
	r.userRoom[m.ID] = roomID

	r.pub.Publish(broadcast.RoomScope(roomID), models.EvUserJoined, models.PresenceEvent{
		UserID:    m.ID,
		UserName:  m.Name,
		UserRole:  m.Role,
		UserCount: len(rm.members),
		RoomID:    roomID,
		Users:     rm.names(),
	})
	return nil
}

// Leave removes the user from the room and notifies the remaining members
// with the updated roster.
func (r *Registry) Leave(userID, userName string, roomID int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.userRoom[userID]; ok && current == roomID {
		delete(r.userRoom, userID)
	}
	r.leaveLocked(userID, userName, roomID)
}

func (r *Registry) leaveLocked(userID, userName string, roomID int) {
	rm, ok := r.rooms[roomID]
	if !ok {
		return
	}
	rm.remove(userID)

	r.pub.Publish(broadcast.RoomScope(roomID), models.EvUserLeft, models.PresenceEvent{
		UserID:    userID,
		UserName:  userName,
		UserCount: len(rm.members),
		RoomID:    roomID,
		Users:     rm.names(),
	})

	if len(rm.members) == 0 {
		if _, core := defaultRooms[roomID]; !core {
			delete(r.rooms, roomID)
			log.WithField("room_id", roomID).Info("empty room deleted")
		}
	}
}

// Disconnect removes the user from whatever room the inverse index points to.
// It always succeeds; a user in no room is a no-op.
func (r *Registry) Disconnect(userID, userName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok := r.userRoom[userID]
	if !ok {
		return
	}
	delete(r.userRoom, userID)
	r.leaveLocked(userID, userName, roomID)
}
