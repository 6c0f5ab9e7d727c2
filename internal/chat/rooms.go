package chat

import (
	"sync"
)

// RoomManager tracks which sessions have joined which rooms. Membership is
// per-session, not per-user: a second device joins on its own. Join is
// advisory bookkeeping — the ingest path re-checks membership at send time.
type RoomManager struct {
	mu       sync.RWMutex
	rooms    map[string]map[*Session]struct{}
	sessions map[*Session]map[string]Scope
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:    make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]map[string]Scope),
	}
}

// Join adds the session to the room. Joining twice is a no-op.
func (r *RoomManager) Join(s *Session, scope Scope) {
	key := scope.RoomKey()

	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[key]
	if room == nil {
		room = make(map[*Session]struct{})
		r.rooms[key] = room
	}
	room[s] = struct{}{}

	joined := r.sessions[s]
	if joined == nil {
		joined = make(map[string]Scope)
		r.sessions[s] = joined
	}
	joined[key] = scope
}

// Leave removes the session from the room
func (r *RoomManager) Leave(s *Session, scope Scope) {
	key := scope.RoomKey()

	r.mu.Lock()
	defer r.mu.Unlock()

	if room := r.rooms[key]; room != nil {
		delete(room, s)
		if len(room) == 0 {
			delete(r.rooms, key)
		}
	}
	if joined := r.sessions[s]; joined != nil {
		delete(joined, key)
		if len(joined) == 0 {
			delete(r.sessions, s)
		}
	}
}

// LeaveAll removes the session from every joined room and returns the
// scopes it was in. Called on disconnect.
func (r *RoomManager) LeaveAll(s *Session) []Scope {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.sessions[s]
	scopes := make([]Scope, 0, len(joined))
	for key, scope := range joined {
		scopes = append(scopes, scope)
		if room := r.rooms[key]; room != nil {
			delete(room, s)
			if len(room) == 0 {
				delete(r.rooms, key)
			}
		}
	}
	delete(r.sessions, s)
	return scopes
}

// IsMember reports whether the session has joined the room
func (r *RoomManager) IsMember(s *Session, scope Scope) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.sessions[s]
	if joined == nil {
		return false
	}
	_, ok := joined[scope.RoomKey()]
	return ok
}

// Members returns a snapshot of the sessions currently in the room
func (r *RoomManager) Members(scope Scope) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.rooms[scope.RoomKey()]
	members := make([]*Session, 0, len(room))
	for s := range room {
		members = append(members, s)
	}
	return members
}

// Online returns the number of sessions currently joined to the room
func (r *RoomManager) Online(scope Scope) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[scope.RoomKey()])
}

// Joined returns the scopes the session is currently in
func (r *RoomManager) Joined(s *Session) []Scope {
	r.mu.RLock()
	defer r.mu.RUnlock()

	joined := r.sessions[s]
	scopes := make([]Scope, 0, len(joined))
	for _, scope := range joined {
		scopes = append(scopes, scope)
	}
	return scopes
}
