package chat

// Effect is one delivery instruction produced by an event handler.
// Handlers compute effects without touching the transport, which keeps
// them unit-testable; the dispatcher applies effects through the hub.
type Effect struct {
	// Broadcast targets the room; otherwise the originating session
	Broadcast bool
	Scope     Scope
	Event     Event
	// ExceptSessionID skips one session during a broadcast
	ExceptSessionID string
	// ExceptUserID skips all of one user's sessions during a broadcast
	ExceptUserID uint
}

// Reply delivers to the originating session only
func Reply(event Event) Effect {
	return Effect{Event: event}
}

// BroadcastTo delivers to every session joined to the room
func BroadcastTo(scope Scope, event Event) Effect {
	return Effect{Broadcast: true, Scope: scope, Event: event}
}

// BroadcastExceptSession delivers to the room minus one session
func BroadcastExceptSession(scope Scope, event Event, sessionID string) Effect {
	return Effect{Broadcast: true, Scope: scope, Event: event, ExceptSessionID: sessionID}
}

// BroadcastExceptUser delivers to the room minus all of a user's sessions
func BroadcastExceptUser(scope Scope, event Event, userID uint) Effect {
	return Effect{Broadcast: true, Scope: scope, Event: event, ExceptUserID: userID}
}
