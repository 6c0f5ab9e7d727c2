package chat

import (
	"context"
	"time"

	"gatherhub/backend/internal/identity"
	apperrors "gatherhub/backend/pkg/errors"
	"gatherhub/backend/pkg/logger"
)

// Presence records best-effort liveness markers. Never on the critical
// path: failures are logged and swallowed.
type Presence interface {
	RecordLastSeen(ctx context.Context, userID uint, at time.Time) error
}

// Gateway authenticates transport sessions. No chat operation is
// permitted before a successful handshake.
type Gateway struct {
	identity   identity.Provider
	presence   Presence
	hub        *Hub
	sendBuffer int
	log        *logger.Logger
}

func NewGateway(provider identity.Provider, presence Presence, hub *Hub, sendBuffer int, log *logger.Logger) *Gateway {
	return &Gateway{
		identity:   provider,
		presence:   presence,
		hub:        hub,
		sendBuffer: sendBuffer,
		log:        log,
	}
}

// Authenticate validates the credential and creates a registered session.
// The failure reasons (missing, invalid, unknown user) are distinguished
// in logs but collapse into one generic error for the caller.
func (g *Gateway) Authenticate(ctx context.Context, credential string) (*Session, error) {
	ident, err := g.identity.Verify(ctx, credential)
	if err != nil {
		g.log.Warn("handshake rejected", "reason", err.Error())
		return nil, apperrors.NewAuthenticationError("authentication failed")
	}

	session := NewSession(ident.ID, ident.Name, ident.AvatarURL, g.sendBuffer)
	g.hub.Register(session)

	if g.presence != nil {
		go func(userID uint) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := g.presence.RecordLastSeen(ctx, userID, time.Now()); err != nil {
				g.log.Debug("last-seen update failed", "user_id", userID, "error", err.Error())
			}
		}(ident.ID)
	}

	g.log.Info("session authenticated", "session_id", session.ID, "user_id", ident.ID)
	return session, nil
}

// Disconnect tears the session down and removes it from all rooms
func (g *Gateway) Disconnect(s *Session) {
	g.hub.Unregister(s)
}
