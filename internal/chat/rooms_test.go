package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomJoinIsIdempotentPerSession(t *testing.T) {
	rooms := NewRoomManager()
	scope := Scope{Type: ScopeGroup, ID: "1"}
	s := NewSession(1, "ada", "", 4)

	rooms.Join(s, scope)
	rooms.Join(s, scope)
	rooms.Join(s, scope)

	assert.Equal(t, 1, rooms.Online(scope))
	assert.True(t, rooms.IsMember(s, scope))
}

func TestRoomMembershipIsPerSessionNotPerUser(t *testing.T) {
	rooms := NewRoomManager()
	scope := Scope{Type: ScopeGroup, ID: "1"}

	phone := NewSession(7, "ada", "", 4)
	laptop := NewSession(7, "ada", "", 4)
	rooms.Join(phone, scope)

	assert.True(t, rooms.IsMember(phone, scope))
	// The same user's second device joins on its own
	assert.False(t, rooms.IsMember(laptop, scope))
}

func TestRoomKeysKeepScopeTypesApart(t *testing.T) {
	rooms := NewRoomManager()
	groupScope := Scope{Type: ScopeGroup, ID: "5"}
	eventScope := Scope{Type: ScopeEvent, ID: "5"}

	s := NewSession(1, "ada", "", 4)
	rooms.Join(s, groupScope)

	assert.True(t, rooms.IsMember(s, groupScope))
	assert.False(t, rooms.IsMember(s, eventScope), "group:5 and event:5 are distinct rooms")
	assert.Equal(t, 0, rooms.Online(eventScope))
}

func TestLeaveAllReturnsEveryJoinedScope(t *testing.T) {
	rooms := NewRoomManager()
	s := NewSession(1, "ada", "", 4)
	a := Scope{Type: ScopeGroup, ID: "1"}
	b := Scope{Type: ScopeEvent, ID: "2"}
	rooms.Join(s, a)
	rooms.Join(s, b)

	left := rooms.LeaveAll(s)
	require.Len(t, left, 2)
	assert.ElementsMatch(t, []Scope{a, b}, left)
	assert.False(t, rooms.IsMember(s, a))
	assert.False(t, rooms.IsMember(s, b))
	assert.Empty(t, rooms.Joined(s))
}

func TestLeaveUnknownRoomIsHarmless(t *testing.T) {
	rooms := NewRoomManager()
	s := NewSession(1, "ada", "", 4)
	rooms.Leave(s, Scope{Type: ScopeGroup, ID: "404"})
	assert.Empty(t, rooms.Joined(s))
}

func TestScopeValidation(t *testing.T) {
	tests := []struct {
		scope Scope
		valid bool
	}{
		{Scope{Type: ScopeGroup, ID: "1"}, true},
		{Scope{Type: ScopeEvent, ID: "x"}, true},
		{Scope{Type: "channel", ID: "1"}, false},
		{Scope{Type: ScopeGroup, ID: ""}, false},
		{Scope{}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.valid, tt.scope.Valid(), "scope %+v", tt.scope)
	}
}

func TestRoomKeyFormat(t *testing.T) {
	assert.Equal(t, "group:12", Scope{Type: ScopeGroup, ID: "12"}.RoomKey())
	assert.Equal(t, "event:12", Scope{Type: ScopeEvent, ID: "12"}.RoomKey())
}
