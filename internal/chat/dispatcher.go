package chat

import (
	"context"
	"encoding/json"

	apperrors "gatherhub/backend/pkg/errors"
	"gatherhub/backend/pkg/logger"
)

// HandlerFunc processes one inbound event for a session and returns the
// deliveries it caused. Returned errors are reported to the originating
// session only; they are never broadcast.
type HandlerFunc func(ctx context.Context, s *Session, payload json.RawMessage) ([]Effect, error)

// Dispatcher routes inbound events to their handlers and applies the
// resulting effects through the hub. One dispatcher serves all
// connections; ordering per connection comes from the transport feeding
// frames in sequence.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	hub      *Hub
	log      *logger.Logger
}

func NewDispatcher(hub *Hub, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		hub:      hub,
		log:      log,
	}
}

// Handle registers a handler for an event type
func (d *Dispatcher) Handle(eventType string, h HandlerFunc) {
	d.handlers[eventType] = h
}

// Dispatch decodes one inbound frame and runs its handler
func (d *Dispatcher) Dispatch(ctx context.Context, s *Session, frame []byte) {
	var event InboundEvent
	if err := json.Unmarshal(frame, &event); err != nil {
		d.log.Debug("unparseable frame", "session_id", s.ID, "error", err.Error())
		return
	}

	s.Touch()

	handler, ok := d.handlers[event.Type]
	if !ok {
		d.log.Debug("unknown event type", "session_id", s.ID, "type", event.Type)
		return
	}

	effects, err := handler(ctx, s, event.Content)
	if err != nil {
		appErr := apperrors.FromError(err)
		d.hub.Reply(s, Event{
			Type: EventMessageError,
			Content: MessageErrorPayload{
				Code:   appErr.Code,
				Reason: appErr.Message,
			},
		})
		return
	}

	d.Apply(s, effects)
}

// Apply executes a handler's effects on behalf of the originating session
func (d *Dispatcher) Apply(origin *Session, effects []Effect) {
	for _, effect := range effects {
		if effect.Broadcast {
			d.hub.Broadcast(effect.Scope, effect.Event, effect.ExceptSessionID, effect.ExceptUserID)
		} else {
			d.hub.Reply(origin, effect.Event)
		}
	}
}
