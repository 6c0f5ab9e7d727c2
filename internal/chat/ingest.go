package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"gatherhub/backend/internal/metrics"
	"gatherhub/backend/internal/models"
	"gatherhub/backend/internal/repository"
	apperrors "gatherhub/backend/pkg/errors"
	"gatherhub/backend/pkg/logger"
)

// Ingest validates, persists and fans out messages. Rooms proceed fully
// in parallel; ordering within a room comes from the server-assigned
// creation timestamp, not from serializing writes.
type Ingest struct {
	repo             repository.MessageRepository
	rooms            *RoomManager
	maxMessageLength int
	log              *logger.Logger

	now func() time.Time

	// lastCreated keeps creation timestamps non-decreasing per room even
	// when the wall clock steps backwards; ties break by id order
	mu          sync.Mutex
	lastCreated map[string]time.Time
}

func NewIngest(repo repository.MessageRepository, rooms *RoomManager, maxMessageLength int, log *logger.Logger) *Ingest {
	if maxMessageLength <= 0 {
		maxMessageLength = 1000
	}
	return &Ingest{
		repo:             repo,
		rooms:            rooms,
		maxMessageLength: maxMessageLength,
		log:              log,
		now:              time.Now,
		lastCreated:      make(map[string]time.Time),
	}
}

func (i *Ingest) stamp(roomKey string) time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()

	ts := i.now()
	if last, ok := i.lastCreated[roomKey]; ok && ts.Before(last) {
		ts = last
	}
	i.lastCreated[roomKey] = ts
	return ts
}

// Send validates and persists a message, acks the originating session and
// broadcasts to the room. Validation order: content, length, membership.
// The sender is recorded as having read their own message.
func (i *Ingest) Send(ctx context.Context, s *Session, p SendMessagePayload) ([]Effect, error) {
	scope := p.Scope()
	if !scope.Valid() {
		return nil, apperrors.NewValidationError("INVALID_SCOPE", "unknown chat scope")
	}

	if strings.TrimSpace(p.Content) == "" && p.Media == nil {
		return nil, apperrors.NewValidationError(apperrors.CodeEmptyMessage, "message has no content and no media")
	}
	if utf8.RuneCountInString(p.Content) > i.maxMessageLength {
		return nil, apperrors.NewValidationError(apperrors.CodeMessageTooLong, "message exceeds the maximum length")
	}

	msgType := p.Type
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	switch msgType {
	case models.MessageTypeText, models.MessageTypeImage, models.MessageTypeFile, models.MessageTypeSystem:
	default:
		return nil, apperrors.NewValidationError("INVALID_MESSAGE_TYPE", "unknown message type")
	}

	// Join is advisory; membership here is authoritative
	if !i.rooms.IsMember(s, scope) {
		return nil, apperrors.NewAuthorizationError("session has not joined this room")
	}

	ts := i.stamp(scope.RoomKey())
	message := &models.Message{
		ScopeType:    string(scope.Type),
		ScopeID:      scope.ID,
		SenderID:     s.UserID,
		SenderName:   s.UserName,
		SenderAvatar: s.AvatarURL,
		Content:      p.Content,
		Type:         msgType,
		ReplyToID:    p.ReplyToID,
		Mentions:     p.Mentions,
		CreatedAt:    ts,
		// The sender has read what they just wrote
		Reads: []models.MessageRead{{UserID: s.UserID, ReadAt: ts}},
	}
	if p.Media != nil {
		message.MediaURL = p.Media.URL
		message.MediaName = p.Media.Filename
		message.MediaSize = p.Media.Size
	}

	if err := i.repo.Create(ctx, message); err != nil {
		i.log.LogError(err, "message persistence failed", "room", scope.RoomKey(), "user_id", s.UserID)
		return nil, apperrors.NewPersistenceError("failed to store message")
	}

	metrics.MessagesIngested.Inc()

	return []Effect{
		Reply(Event{
			Type:    EventMessageSent,
			Content: MessageSentPayload{CorrelationID: p.CorrelationID, MessageID: message.ID},
		}),
		BroadcastTo(scope, Event{
			Type:    EventNewMessage,
			Content: NewMessagePayload{Message: ViewOf(message), CorrelationID: p.CorrelationID},
		}),
	}, nil
}

// Edit updates a message's content. Only the original sender may edit.
func (i *Ingest) Edit(ctx context.Context, s *Session, p EditMessagePayload) ([]Effect, error) {
	message, err := i.lookup(ctx, p.MessageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != s.UserID {
		return nil, apperrors.NewAuthorizationError("only the sender may edit a message")
	}
	if strings.TrimSpace(p.Content) == "" && !message.HasMedia() {
		return nil, apperrors.NewValidationError(apperrors.CodeEmptyMessage, "edited content is empty")
	}
	if utf8.RuneCountInString(p.Content) > i.maxMessageLength {
		return nil, apperrors.NewValidationError(apperrors.CodeMessageTooLong, "message exceeds the maximum length")
	}

	at := i.now()
	if err := i.repo.SaveEdit(ctx, message.ID, p.Content, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("message not found")
		}
		return nil, apperrors.NewPersistenceError("failed to store edit")
	}

	message.Content = p.Content
	message.Edited = true
	message.EditedAt = &at

	scope := Scope{Type: ScopeType(message.ScopeType), ID: message.ScopeID}
	return []Effect{
		BroadcastTo(scope, Event{
			Type:    EventMessageEdited,
			Content: NewMessagePayload{Message: ViewOf(message)},
		}),
	}, nil
}

// Delete soft-deletes a message. Only the original sender may delete; the
// row stays in storage but disappears from history.
func (i *Ingest) Delete(ctx context.Context, s *Session, p DeleteMessagePayload) ([]Effect, error) {
	message, err := i.lookup(ctx, p.MessageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != s.UserID {
		return nil, apperrors.NewAuthorizationError("only the sender may delete a message")
	}

	if err := i.repo.SoftDelete(ctx, message.ID, i.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("message not found")
		}
		return nil, apperrors.NewPersistenceError("failed to delete message")
	}

	scope := Scope{Type: ScopeType(message.ScopeType), ID: message.ScopeID}
	return []Effect{
		BroadcastTo(scope, Event{
			Type: EventMessageDeleted,
			Content: MessageDeletedPayload{
				ScopeType: message.ScopeType,
				ScopeID:   message.ScopeID,
				MessageID: message.ID,
			},
		}),
	}, nil
}

// AddReaction sets the user's reaction on a message, replacing any prior
// reaction by the same user. Any member of the message's room may react.
func (i *Ingest) AddReaction(ctx context.Context, s *Session, p ReactionPayload) ([]Effect, error) {
	if p.Emoji == "" {
		return nil, apperrors.NewValidationError("EMPTY_REACTION", "reaction emoji is required")
	}

	message, err := i.lookup(ctx, p.MessageID)
	if err != nil {
		return nil, err
	}

	scope := Scope{Type: ScopeType(message.ScopeType), ID: message.ScopeID}
	if !i.rooms.IsMember(s, scope) {
		return nil, apperrors.NewAuthorizationError("session has not joined this room")
	}

	at := i.now()
	if err := i.repo.UpsertReaction(ctx, message.ID, s.UserID, p.Emoji, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("message not found")
		}
		return nil, apperrors.NewPersistenceError("failed to store reaction")
	}

	return []Effect{
		BroadcastTo(scope, Event{
			Type: EventMessageReaction,
			Content: MessageReactionPayload{
				ScopeType: message.ScopeType,
				ScopeID:   message.ScopeID,
				MessageID: message.ID,
				UserID:    s.UserID,
				Emoji:     p.Emoji,
			},
		}),
	}, nil
}

// RemoveReaction clears the user's reaction. Removing a reaction that was
// never set is a no-op, not an error.
func (i *Ingest) RemoveReaction(ctx context.Context, s *Session, p ReactionPayload) ([]Effect, error) {
	message, err := i.lookup(ctx, p.MessageID)
	if err != nil {
		return nil, err
	}

	scope := Scope{Type: ScopeType(message.ScopeType), ID: message.ScopeID}
	if !i.rooms.IsMember(s, scope) {
		return nil, apperrors.NewAuthorizationError("session has not joined this room")
	}

	if err := i.repo.RemoveReaction(ctx, message.ID, s.UserID); err != nil {
		return nil, apperrors.NewPersistenceError("failed to remove reaction")
	}

	return []Effect{
		BroadcastTo(scope, Event{
			Type: EventMessageReaction,
			Content: MessageReactionPayload{
				ScopeType: message.ScopeType,
				ScopeID:   message.ScopeID,
				MessageID: message.ID,
				UserID:    s.UserID,
				Removed:   true,
			},
		}),
	}, nil
}

// lookup fetches a live message; deleted rows report not-found
func (i *Ingest) lookup(ctx context.Context, id uint) (*models.Message, error) {
	message, err := i.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFoundError("message not found")
		}
		return nil, apperrors.NewPersistenceError("failed to load message")
	}
	if message.Deleted {
		return nil, apperrors.NewNotFoundError("message not found")
	}
	return message, nil
}
