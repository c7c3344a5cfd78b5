package websocket

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// RoomID имя комнаты: channel:<id> или user:<id>
type RoomID string

const (
	channelRoomPrefix = "channel:"
	userRoomPrefix    = "user:"
)

func ChannelRoom(channelID uuid.UUID) RoomID {
	return RoomID(channelRoomPrefix + channelID.String())
}

func UserRoom(userID uuid.UUID) RoomID {
	return RoomID(userRoomPrefix + userID.String())
}

func (r RoomID) IsChannel() bool {
	return strings.HasPrefix(string(r), channelRoomPrefix)
}

// RoomRegistry подписки соединений на комнаты.
// Комната существует пока в ней есть хотя бы одно соединение.
type RoomRegistry struct {
	mu     sync.RWMutex
	rooms  map[RoomID]map[uuid.UUID]struct{}
	byConn map[uuid.UUID]map[RoomID]struct{}
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:  make(map[RoomID]map[uuid.UUID]struct{}),
		byConn: make(map[uuid.UUID]map[RoomID]struct{}),
	}
}

// Join идемпотентен, возвращает true если подписка новая
func (r *RoomRegistry) Join(room RoomID, connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		r.rooms[room] = members
	}
	if _, ok := members[connID]; ok {
		return false
	}
	members[connID] = struct{}{}

	if _, ok := r.byConn[connID]; !ok {
		r.byConn[connID] = make(map[RoomID]struct{})
	}
	r.byConn[connID][room] = struct{}{}
	return true
}

func (r *RoomRegistry) Leave(room RoomID, connID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(room, connID)
}

// LeaveAll удаляет соединение из всех комнат
func (r *RoomRegistry) LeaveAll(connID uuid.UUID) []RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	left := make([]RoomID, 0, len(r.byConn[connID]))
	for room := range r.byConn[connID] {
		r.leaveLocked(room, connID)
		left = append(left, room)
	}
	return left
}

func (r *RoomRegistry) leaveLocked(room RoomID, connID uuid.UUID) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[connID]; !ok {
		return false
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	if joined, ok := r.byConn[connID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.byConn, connID)
		}
	}
	return true
}

// Members снимок подписчиков комнаты
func (r *RoomRegistry) Members(room RoomID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]uuid.UUID, 0, len(r.rooms[room]))
	for connID := range r.rooms[room] {
		out = append(out, connID)
	}
	return out
}

func (r *RoomRegistry) RoomsOf(connID uuid.UUID) []RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RoomID, 0, len(r.byConn[connID]))
	for room := range r.byConn[connID] {
		out = append(out, room)
	}
	return out
}

func (r *RoomRegistry) IsMember(room RoomID, connID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[room][connID]
	return ok
}

func (r *RoomRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
