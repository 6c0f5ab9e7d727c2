package chat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gatherhub/backend/pkg/logger"
	"gatherhub/backend/shared/redis"
)

// Typing relays ephemeral typing state to the rest of the room. Nothing
// is persisted and nothing is acknowledged; stopping is normally the
// client's job. An optional TTL guard emits the stop event for clients
// that go silent mid-keystroke.
type Typing struct {
	rooms *RoomManager
	hub   *Hub
	log   *logger.Logger

	// state mirrors live typing keys into redis so other processes can
	// observe them; nil disables the mirror
	state *redis.Client

	ttl     time.Duration
	enforce bool

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewTyping(rooms *RoomManager, hub *Hub, state *redis.Client, ttl time.Duration, enforce bool, log *logger.Logger) *Typing {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Typing{
		rooms:   rooms,
		hub:     hub,
		log:     log,
		state:   state,
		ttl:     ttl,
		enforce: enforce,
		timers:  make(map[string]*time.Timer),
	}
}

// Set relays the user's typing state to every other session in the room.
// A session that is not a member produces no relay and no error.
func (t *Typing) Set(ctx context.Context, s *Session, p TypingPayload, isTyping bool) ([]Effect, error) {
	scope := p.Scope()
	if !scope.Valid() || !t.rooms.IsMember(s, scope) {
		return nil, nil
	}

	t.mirror(ctx, scope, s.UserID, isTyping)
	if t.enforce {
		t.guard(scope, s.UserID, s.UserName, isTyping)
	}

	return []Effect{
		BroadcastExceptSession(scope, Event{
			Type: EventUserTyping,
			Content: UserTypingPayload{
				ScopeType: string(scope.Type),
				ScopeID:   scope.ID,
				UserID:    s.UserID,
				UserName:  s.UserName,
				IsTyping:  isTyping,
			},
		}, s.ID),
	}, nil
}

func typingKey(scope Scope, userID uint) string {
	return fmt.Sprintf("typing:%s:%d", scope.RoomKey(), userID)
}

// mirror keeps a last-write-wins record of typing state in redis
func (t *Typing) mirror(ctx context.Context, scope Scope, userID uint, isTyping bool) {
	if t.state == nil {
		return
	}
	key := typingKey(scope, userID)
	var err error
	if isTyping {
		err = t.state.Set(ctx, key, "1", t.ttl)
	} else {
		err = t.state.Del(ctx, key)
	}
	if err != nil {
		t.log.Debug("typing state mirror failed", "key", key, "error", err.Error())
	}
}

// guard arms a timer that broadcasts typing=false if the client never
// sends the stop event
func (t *Typing) guard(scope Scope, userID uint, userName string, isTyping bool) {
	key := typingKey(scope, userID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
	if !isTyping {
		return
	}

	t.timers[key] = time.AfterFunc(t.ttl, func() {
		t.mu.Lock()
		delete(t.timers, key)
		t.mu.Unlock()

		t.hub.Broadcast(scope, Event{
			Type: EventUserTyping,
			Content: UserTypingPayload{
				ScopeType: string(scope.Type),
				ScopeID:   scope.ID,
				UserID:    userID,
				UserName:  userName,
				IsTyping:  false,
			},
		}, "", userID)
	})
}

// Stop cancels all pending TTL guards. Used during shutdown.
func (t *Typing) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}
