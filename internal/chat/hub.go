package chat

import (
	"sync"

	"gatherhub/backend/internal/metrics"
	"gatherhub/backend/pkg/logger"
)

// Hub is the explicit server context for the chat subsystem: the session
// registry plus room membership, constructed once at startup and passed by
// reference to every handler. Fan-out to room members is non-blocking per
// recipient; a stalled session is disconnected rather than allowed to
// delay delivery to the others.
type Hub struct {
	Rooms *RoomManager

	mu       sync.Mutex
	sessions map[*Session]struct{}
	log      *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		Rooms:    NewRoomManager(),
		sessions: make(map[*Session]struct{}),
		log:      log,
	}
}

// Register adds a freshly authenticated session
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()

	metrics.WsConnections.Inc()
	h.log.Debug("session registered", "session_id", s.ID, "user_id", s.UserID)
}

// Unregister removes the session from every joined room and stops further
// delivery to it. Persistence operations already accepted for this session
// complete normally; their results are simply undelivered.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	_, known := h.sessions[s]
	delete(h.sessions, s)
	h.mu.Unlock()

	if !known {
		return
	}

	h.Rooms.LeaveAll(s)
	s.Close()
	metrics.WsConnections.Dec()
	h.log.Debug("session unregistered", "session_id", s.ID, "user_id", s.UserID)
}

// Broadcast delivers the event to every session joined to the room,
// skipping the optional excluded session or user. Recipients whose buffers
// are full are dropped from the hub entirely so one slow consumer cannot
// hold up the room.
func (h *Hub) Broadcast(scope Scope, event Event, exceptSession string, exceptUser uint) {
	for _, member := range h.Rooms.Members(scope) {
		if exceptSession != "" && member.ID == exceptSession {
			continue
		}
		if exceptUser != 0 && member.UserID == exceptUser {
			continue
		}
		if !member.Deliver(event) {
			metrics.BroadcastDrops.Inc()
			h.log.Warn("dropping unresponsive session",
				"session_id", member.ID,
				"user_id", member.UserID,
				"room", scope.RoomKey(),
			)
			h.Unregister(member)
		}
	}
	metrics.EventsBroadcast.Inc()
}

// Reply delivers the event to a single session
func (h *Hub) Reply(s *Session, event Event) {
	if !s.Deliver(event) {
		metrics.BroadcastDrops.Inc()
		h.Unregister(s)
	}
}

// SessionCount returns the number of live sessions
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Shutdown closes every session. Used during graceful server teardown.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		h.Unregister(s)
	}
}
