package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one authenticated transport connection for one user. A user
// may hold several concurrent sessions (one per device); each joins rooms
// independently. The gateway owns the lifecycle: created on a successful
// handshake, destroyed on disconnect or liveness timeout.
type Session struct {
	ID        string
	UserID    uint
	UserName  string
	AvatarURL string

	send chan Event

	mu           sync.Mutex
	closed       bool
	lastActivity time.Time
}

// NewSession creates a session with a buffered outbound queue
func NewSession(userID uint, userName, avatarURL string, sendBuffer int) *Session {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		UserName:     userName,
		AvatarURL:    avatarURL,
		send:         make(chan Event, sendBuffer),
		lastActivity: time.Now(),
	}
}

// Deliver queues an event for the session without blocking. It returns
// false when the session is closed or its buffer is full; a slow consumer
// must never stall delivery to the rest of the room.
func (s *Session) Deliver(event Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- event:
		return true
	default:
		return false
	}
}

// Events exposes the outbound queue to the transport write loop
func (s *Session) Events() <-chan Event {
	return s.send
}

// Close stops further delivery. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// Closed reports whether the session has been shut down
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Touch updates the liveness marker
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// LastActivity returns the time of the most recent inbound frame
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}
