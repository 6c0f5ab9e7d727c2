package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingRelaysToRoomExceptEmitter(t *testing.T) {
	rooms := NewRoomManager()
	hub := NewHub(testLogger())
	typing := NewTyping(rooms, hub, nil, 5*time.Second, false, testLogger())

	scope := Scope{Type: ScopeGroup, ID: "3"}
	typist := joinedSession(rooms, 1, "ada", scope)

	effects, err := typing.Set(context.Background(), typist, TypingPayload{
		ScopeType: "group", ScopeID: "3",
	}, true)
	require.NoError(t, err)
	require.Len(t, effects, 1)

	effect := effects[0]
	assert.True(t, effect.Broadcast)
	assert.Equal(t, EventUserTyping, effect.Event.Type)
	// Only the session that emitted the event is excluded; the typist's
	// other devices still learn about it
	assert.Equal(t, typist.ID, effect.ExceptSessionID)
	assert.Zero(t, effect.ExceptUserID)

	payload := effect.Event.Content.(UserTypingPayload)
	assert.Equal(t, typist.UserID, payload.UserID)
	assert.Equal(t, "ada", payload.UserName)
	assert.True(t, payload.IsTyping)
}

func TestTypingStopRelaysFalse(t *testing.T) {
	rooms := NewRoomManager()
	hub := NewHub(testLogger())
	typing := NewTyping(rooms, hub, nil, 5*time.Second, false, testLogger())

	scope := Scope{Type: ScopeEvent, ID: "6"}
	typist := joinedSession(rooms, 2, "bo", scope)

	effects, err := typing.Set(context.Background(), typist, TypingPayload{
		ScopeType: "event", ScopeID: "6",
	}, false)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	payload := effects[0].Event.Content.(UserTypingPayload)
	assert.False(t, payload.IsTyping)
}

func TestTypingFromNonMemberIsDroppedSilently(t *testing.T) {
	rooms := NewRoomManager()
	hub := NewHub(testLogger())
	typing := NewTyping(rooms, hub, nil, 5*time.Second, false, testLogger())

	outsider := NewSession(9, "eve", "", 16)
	effects, err := typing.Set(context.Background(), outsider, TypingPayload{
		ScopeType: "group", ScopeID: "3",
	}, true)
	assert.NoError(t, err)
	assert.Empty(t, effects)
}

func TestTypingTTLGuardEmitsStop(t *testing.T) {
	hub := NewHub(testLogger())
	rooms := hub.Rooms
	typing := NewTyping(rooms, hub, nil, 20*time.Millisecond, true, testLogger())
	defer typing.Stop()

	scope := Scope{Type: ScopeGroup, ID: "3"}
	typist := joinedSession(rooms, 1, "ada", scope)
	listener := joinedSession(rooms, 2, "bo", scope)
	hub.Register(typist)
	hub.Register(listener)

	_, err := typing.Set(context.Background(), typist, TypingPayload{
		ScopeType: "group", ScopeID: "3",
	}, true)
	require.NoError(t, err)

	select {
	case evt := <-listener.Events():
		require.Equal(t, EventUserTyping, evt.Type)
		payload := evt.Content.(UserTypingPayload)
		assert.False(t, payload.IsTyping, "the guard emits the stop the client never sent")
	case <-time.After(time.Second):
		t.Fatal("TTL guard never fired")
	}
}

func TestTypingStopCancelsGuard(t *testing.T) {
	rooms := NewRoomManager()
	hub := NewHub(testLogger())
	typing := NewTyping(rooms, hub, nil, 20*time.Millisecond, true, testLogger())
	defer typing.Stop()

	scope := Scope{Type: ScopeGroup, ID: "3"}
	typist := joinedSession(rooms, 1, "ada", scope)
	listener := joinedSession(rooms, 2, "bo", scope)
	hub.Register(typist)
	hub.Register(listener)

	_, err := typing.Set(context.Background(), typist, TypingPayload{ScopeType: "group", ScopeID: "3"}, true)
	require.NoError(t, err)
	// An explicit stop disarms the timer
	_, err = typing.Set(context.Background(), typist, TypingPayload{ScopeType: "group", ScopeID: "3"}, false)
	require.NoError(t, err)

	select {
	case evt := <-listener.Events():
		t.Fatalf("unexpected guard event %q after explicit stop", evt.Type)
	case <-time.After(60 * time.Millisecond):
	}
}
