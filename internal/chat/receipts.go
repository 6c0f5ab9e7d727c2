package chat

import (
	"context"
	"errors"
	"time"

	"gatherhub/backend/internal/metrics"
	"gatherhub/backend/internal/repository"
	apperrors "gatherhub/backend/pkg/errors"
)

// Receipts tracks per-user, per-message read acknowledgments. Marking a
// message read twice is a no-op, never an error.
type Receipts struct {
	repo  repository.MessageRepository
	rooms *RoomManager
	now   func() time.Time
}

func NewReceipts(repo repository.MessageRepository, rooms *RoomManager) *Receipts {
	return &Receipts{repo: repo, rooms: rooms, now: time.Now}
}

// MarkRead records read receipts for the given messages and notifies the
// rest of the room. The acting user's own sessions are not notified; they
// already know.
func (r *Receipts) MarkRead(ctx context.Context, s *Session, p MarkReadPayload) ([]Effect, error) {
	scope := p.Scope()
	if !scope.Valid() {
		return nil, apperrors.NewValidationError("INVALID_SCOPE", "unknown chat scope")
	}
	if !r.rooms.IsMember(s, scope) {
		return nil, apperrors.NewAuthorizationError("session has not joined this room")
	}

	at := r.now()
	acked := make([]uint, 0, len(p.MessageIDs))
	for _, id := range p.MessageIDs {
		inserted, err := r.repo.MarkRead(ctx, id, s.UserID, at)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// Unknown or deleted message: skip, not an error
				continue
			}
			return nil, apperrors.NewPersistenceError("failed to store read receipt")
		}
		if inserted {
			metrics.ReadReceipts.Inc()
		}
		acked = append(acked, id)
	}

	if len(acked) == 0 {
		return nil, nil
	}

	return []Effect{
		BroadcastExceptUser(scope, Event{
			Type: EventMessagesRead,
			Content: MessagesReadPayload{
				ScopeType:  string(scope.Type),
				ScopeID:    scope.ID,
				UserID:     s.UserID,
				MessageIDs: acked,
			},
		}, s.UserID),
	}, nil
}
