package chat

import (
	"sort"
	"sync"
)

// RoomKey identifies the conversation of one tenant about one property.
type RoomKey string

func RoomKeyOf(propertyID, tenantID string) RoomKey {
	return RoomKey(propertyID + "|" + tenantID)
}

// Socket is the registry's view of a live connection.
// Send must not block; it reports whether the payload was queued.
type Socket interface {
	ID() string
	Send(payload []byte) bool
	IsOpen() bool
	Close()
}

// PresenceHook observes registry membership changes. It is called outside the
// registry lock, one call at a time, and always reports the membership the
// registry holds when the call is made.
type PresenceHook interface {
	Joined(room, userID string)
	Left(room, userID string)
}

type member struct {
	userID string
	sock   Socket
}

type location struct {
	room   RoomKey
	userID string
}

// RoomRegistry maps rooms to their joined sockets. A user holds at most one
// entry per room and a socket sits in at most one room.
type RoomRegistry struct {
	mu       sync.Mutex
	rooms    map[RoomKey]map[string]member // room -> user -> member
	bySocket map[string]location           // socket id -> where it is registered

	hookMu sync.Mutex // serializes hook calls
	hook   PresenceHook
}

func NewRoomRegistry(hook PresenceHook) *RoomRegistry {
	return &RoomRegistry{
		rooms:    make(map[RoomKey]map[string]member),
		bySocket: make(map[string]location),
		hook:     hook,
	}
}

// Register puts sock into room for userID, replacing the user's previous
// socket in that room. The replaced socket, if any, is returned; it is left open.
func (r *RoomRegistry) Register(room RoomKey, userID string, sock Socket) (evicted Socket) {
	return r.Enter(room, userID, sock, nil)
}

// Enter is Register that first queues snapshot on sock while holding the lock,
// so no broadcast to room can reach sock ahead of it.
func (r *RoomRegistry) Enter(room RoomKey, userID string, sock Socket, snapshot []byte) (evicted Socket) {
	var moved *location

	r.mu.Lock()
	if snapshot != nil {
		sock.Send(snapshot)
	}
	if loc, ok := r.bySocket[sock.ID()]; ok {
		r.removeLocked(sock.ID(), loc)
		if loc.room != room || loc.userID != userID {
			moved = &loc
		}
	}
	m := r.rooms[room]
	if m == nil {
		m = make(map[string]member)
		r.rooms[room] = m
	}
	if old, ok := m[userID]; ok && old.sock.ID() != sock.ID() {
		delete(r.bySocket, old.sock.ID())
		evicted = old.sock
	}
	m[userID] = member{userID: userID, sock: sock}
	r.bySocket[sock.ID()] = location{room: room, userID: userID}
	r.mu.Unlock()

	if moved != nil {
		r.notify(moved.room, moved.userID)
	}
	r.notify(room, userID)
	return evicted
}

// UnregisterSocket removes sock from whichever room holds it. Unknown sockets
// are ignored.
func (r *RoomRegistry) UnregisterSocket(sock Socket) bool {
	r.mu.Lock()
	loc, ok := r.bySocket[sock.ID()]
	if ok {
		r.removeLocked(sock.ID(), loc)
	}
	r.mu.Unlock()

	if ok {
		r.notify(loc.room, loc.userID)
	}
	return ok
}

// notify reports the current membership of userID in room. Reading it under
// hookMu means a late call never undoes the effect of a newer change.
func (r *RoomRegistry) notify(room RoomKey, userID string) {
	if r.hook == nil {
		return
	}
	r.hookMu.Lock()
	defer r.hookMu.Unlock()

	r.mu.Lock()
	_, present := r.rooms[room][userID]
	r.mu.Unlock()
	if present {
		r.hook.Joined(string(room), userID)
	} else {
		r.hook.Left(string(room), userID)
	}
}

func (r *RoomRegistry) removeLocked(sockID string, loc location) {
	delete(r.bySocket, sockID)
	m := r.rooms[loc.room]
	if cur, ok := m[loc.userID]; ok && cur.sock.ID() == sockID {
		delete(m, loc.userID)
	}
	if len(m) == 0 {
		delete(r.rooms, loc.room)
	}
}

// Broadcast queues payload on every open socket in room and returns how many
// accepted it. Closed sockets are skipped. Payloads are queued under the lock,
// so every socket sees a room's broadcasts in call order.
func (r *RoomRegistry) Broadcast(room RoomKey, payload []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, m := range r.rooms[room] {
		if !m.sock.IsOpen() {
			continue
		}
		if m.sock.Send(payload) {
			n++
		}
	}
	return n
}

// Members returns the sorted user ids joined to room.
func (r *RoomRegistry) Members(room RoomKey) []string {
	r.mu.Lock()
	out := make([]string, 0, len(r.rooms[room]))
	for uid := range r.rooms[room] {
		out = append(out, uid)
	}
	r.mu.Unlock()
	sort.Strings(out)
	return out
}

// Lookup reports the room sock is registered in.
func (r *RoomRegistry) Lookup(sock Socket) (RoomKey, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loc, ok := r.bySocket[sock.ID()]
	return loc.room, ok
}

// Len is the number of non-empty rooms.
func (r *RoomRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}
