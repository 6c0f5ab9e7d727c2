package chat

// ScopeType distinguishes the two kinds of chat rooms
type ScopeType string

const (
	ScopeGroup ScopeType = "group"
	ScopeEvent ScopeType = "event"
)

// Scope identifies one chat room: a group chat or an event chat. It is a
// fan-out address, not an entity — who may join lives in the directory.
type Scope struct {
	Type ScopeType `json:"scope_type"`
	ID   string    `json:"scope_id"`
}

// Valid reports whether the scope names a known room kind with a non-empty id
func (s Scope) Valid() bool {
	if s.ID == "" {
		return false
	}
	return s.Type == ScopeGroup || s.Type == ScopeEvent
}

// RoomKey returns the internal room key. The type prefix keeps group "42"
// and event "42" from colliding.
func (s Scope) RoomKey() string {
	return string(s.Type) + ":" + s.ID
}

func (s Scope) String() string {
	return s.RoomKey()
}
