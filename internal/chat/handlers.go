package chat

import (
	"context"
	"encoding/json"

	"gatherhub/backend/internal/directory"
	"gatherhub/backend/internal/metrics"
	apperrors "gatherhub/backend/pkg/errors"
	"gatherhub/backend/pkg/logger"
)

// Services bundles the chat subsystem's event services
type Services struct {
	Ingest    *Ingest
	Receipts  *Receipts
	Typing    *Typing
	Directory directory.Directory
}

// NewChatDispatcher wires every inbound event type to its handler
func NewChatDispatcher(hub *Hub, svcs Services, log *logger.Logger) *Dispatcher {
	d := NewDispatcher(hub, log)

	d.Handle(EventJoinRoom, joinRoomHandler(hub, svcs.Directory))
	d.Handle(EventLeaveRoom, leaveRoomHandler(hub))
	d.Handle(EventSendMessage, sendMessageHandler(svcs.Ingest))
	d.Handle(EventMarkRead, markReadHandler(svcs.Receipts))
	d.Handle(EventTypingStart, typingHandler(svcs.Typing, true))
	d.Handle(EventTypingStop, typingHandler(svcs.Typing, false))
	d.Handle(EventEditMessage, editMessageHandler(svcs.Ingest))
	d.Handle(EventDeleteMessage, deleteMessageHandler(svcs.Ingest))
	d.Handle(EventAddReaction, reactionHandler(svcs.Ingest, false))
	d.Handle(EventRemoveReaction, reactionHandler(svcs.Ingest, true))

	return d
}

func joinRoomHandler(hub *Hub, dir directory.Directory) HandlerFunc {
	return func(ctx context.Context, s *Session, payload json.RawMessage) ([]Effect, error) {
		var p JoinRoomPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, apperrors.NewValidationError("INVALID_PAYLOAD", "malformed join-room payload")
		}
		scope := p.Scope()
		if !scope.Valid() {
			return nil, apperrors.NewValidationError("INVALID_SCOPE", "unknown chat scope")
		}

		if dir != nil {
			allowed, err := dir.CanJoin(ctx, string(scope.Type), scope.ID, s.UserID)
			if err != nil {
				return nil, apperrors.NewPersistenceError("directory lookup failed")
			}
			if !allowed {
				return nil, apperrors.NewAuthorizationError("not a member of this group or event")
			}
		}

		hub.Rooms.Join(s, scope)

		return []Effect{
			Reply(Event{
				Type: EventRoomJoined,
				Content: RoomJoinedPayload{
					ScopeType: string(scope.Type),
					ScopeID:   scope.ID,
					Online:    hub.Rooms.Online(scope),
				},
			}),
		}, nil
	}
}

func leaveRoomHandler(hub *Hub) HandlerFunc {
	return func(ctx context.Context, s *Session, payload json.RawMessage) ([]Effect, error) {
		var p JoinRoomPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, apperrors.NewValidationError("INVALID_PAYLOAD", "malformed leave-room payload")
		}
		scope := p.Scope()
		if !scope.Valid() {
			return nil, apperrors.NewValidationError("INVALID_SCOPE", "unknown chat scope")
		}

		hub.Rooms.Leave(s, scope)

		return []Effect{
			Reply(Event{
				Type: EventRoomLeft,
				Content: RoomJoinedPayload{
					ScopeType: string(scope.Type),
					ScopeID:   scope.ID,
					Online:    hub.Rooms.Online(scope),
				},
			}),
		}, nil
	}
}

// sendMessageHandler folds all send-path failures into a message-error
// addressed by correlation id, so the client can resolve its optimistic
// placeholder. Errors never reach the room.
func sendMessageHandler(ingest *Ingest) HandlerFunc {
	return func(ctx context.Context, s *Session, payload json.RawMessage) ([]Effect, error) {
		var p SendMessagePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, apperrors.NewValidationError("INVALID_PAYLOAD", "malformed send-message payload")
		}

		effects, err := ingest.Send(ctx, s, p)
		if err != nil {
			appErr := apperrors.FromError(err)
			metrics.MessagesRejected.WithLabelValues(appErr.Code).Inc()
			return []Effect{
				Reply(Event{
					Type: EventMessageError,
					Content: MessageErrorPayload{
						CorrelationID: p.CorrelationID,
						Code:          appErr.Code,
						Reason:        appErr.Message,
					},
				}),
			}, nil
		}
		return effects, nil
	}
}

func markReadHandler(receipts *Receipts) HandlerFunc {
	return func(ctx context.Context, s *Session, payload json.RawMessage) ([]Effect, error) {
		var p MarkReadPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, apperrors.NewValidationError("INVALID_PAYLOAD", "malformed mark-read payload")
		}
		return receipts.MarkRead(ctx, s, p)
	}
}

func typingHandler(typing *Typing, isTyping bool) HandlerFunc {
	return func(ctx context.Context, s *Session, payload json.RawMessage) ([]Effect, error) {
		var p TypingPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, apperrors.NewValidationError("INVALID_PAYLOAD", "malformed typing payload")
		}
		return typing.Set(ctx, s, p, isTyping)
	}
}

func editMessageHandler(ingest *Ingest) HandlerFunc {
	return func(ctx context.Context, s *Session, payload json.RawMessage) ([]Effect, error) {
		var p EditMessagePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, apperrors.NewValidationError("INVALID_PAYLOAD", "malformed edit-message payload")
		}
		return ingest.Edit(ctx, s, p)
	}
}

func deleteMessageHandler(ingest *Ingest) HandlerFunc {
	return func(ctx context.Context, s *Session, payload json.RawMessage) ([]Effect, error) {
		var p DeleteMessagePayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, apperrors.NewValidationError("INVALID_PAYLOAD", "malformed delete-message payload")
		}
		return ingest.Delete(ctx, s, p)
	}
}

func reactionHandler(ingest *Ingest, remove bool) HandlerFunc {
	return func(ctx context.Context, s *Session, payload json.RawMessage) ([]Effect, error) {
		var p ReactionPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, apperrors.NewValidationError("INVALID_PAYLOAD", "malformed reaction payload")
		}
		if remove {
			return ingest.RemoveReaction(ctx, s, p)
		}
		return ingest.AddReaction(ctx, s, p)
	}
}
