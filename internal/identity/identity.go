package identity

import (
	"context"
	"errors"
)

// Handshake failure reasons. All of them surface to the caller as a
// generic authentication error; the distinction is for server-side logs.
var (
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUnknownUser       = errors.New("unknown user")
)

// UserIdentity is the public identity attached to a chat session
type UserIdentity struct {
	ID        uint
	Name      string
	AvatarURL string
}

// Provider validates a credential and resolves it to a user identity.
// Identity issuance lives outside the chat core; this is the narrow
// contract the gateway consumes.
type Provider interface {
	Verify(ctx context.Context, credential string) (*UserIdentity, error)
}
