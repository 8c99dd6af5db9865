package runtime

import (
	"sync"

	"chat-gateway/domain"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Rooms is the thread-safe bidirectional index of room to watching
// connections. Membership is tracked per connection, not per identity: a
// user's second device only sees a room it joined itself.
type Rooms struct {
	mu      sync.RWMutex
	members map[domain.RoomID]map[uuid.UUID]struct{}
	joined  map[uuid.UUID]map[domain.RoomID]struct{}
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[domain.RoomID]map[uuid.UUID]struct{}),
		joined:  make(map[uuid.UUID]map[domain.RoomID]struct{}),
	}
}

// Join adds the connection to a room. Joining a room the connection is
// already a member of is a no-op; the room springs into existence on its
// first member.
func (t *Rooms) Join(room domain.RoomID, connID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.members[room]; !ok {
		t.members[room] = make(map[uuid.UUID]struct{})
	}
	t.members[room][connID] = struct{}{}

	if _, ok := t.joined[connID]; !ok {
		t.joined[connID] = make(map[domain.RoomID]struct{})
	}
	t.joined[connID][room] = struct{}{}
}

// Leave removes the connection from a room. Leaving a room the
// connection never joined is a no-op. Emptied rooms are deleted so the
// maps do not leak over time.
func (t *Rooms) Leave(room domain.RoomID, connID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.leaveLocked(room, connID)
}

// LeaveAll removes the connection from every room it belongs to and
// returns the rooms it left. Part of the disconnect cleanup; safe to
// call for a connection that joined nothing.
func (t *Rooms) LeaveAll(connID uuid.UUID) []domain.RoomID {
	t.mu.Lock()
	defer t.mu.Unlock()

	rooms := lo.Keys(t.joined[connID])
	for _, room := range rooms {
		t.leaveLocked(room, connID)
	}
	return rooms
}

func (t *Rooms) leaveLocked(room domain.RoomID, connID uuid.UUID) {
	if members, ok := t.members[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(t.members, room)
		}
	}
	if joined, ok := t.joined[connID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(t.joined, connID)
		}
	}
}

// MembersOf returns a snapshot of the connections watching a room. An
// unknown room yields an empty slice, not an error.
func (t *Rooms) MembersOf(room domain.RoomID) []uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lo.Keys(t.members[room])
}

// RoomsOf returns a snapshot of the rooms a connection has joined.
func (t *Rooms) RoomsOf(connID uuid.UUID) []domain.RoomID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lo.Keys(t.joined[connID])
}
