package identity

import (
	"context"

	"gatherhub/backend/internal/models"
	"gatherhub/backend/pkg/jwt"
)

// UserLookup resolves a user id to its account record
type UserLookup interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
}

// TokenProvider verifies signed bearer tokens. When a user lookup is
// configured, a syntactically valid token whose subject no longer exists
// is rejected as an unknown user.
type TokenProvider struct {
	tokens *jwt.Service
	users  UserLookup
}

func NewTokenProvider(tokens *jwt.Service, users UserLookup) *TokenProvider {
	return &TokenProvider{tokens: tokens, users: users}
}

func (p *TokenProvider) Verify(ctx context.Context, credential string) (*UserIdentity, error) {
	if credential == "" {
		return nil, ErrMissingCredential
	}

	claims, err := p.tokens.ValidateToken(credential)
	if err != nil {
		return nil, ErrInvalidCredential
	}

	ident := &UserIdentity{
		ID:        claims.UserID,
		Name:      claims.Name,
		AvatarURL: claims.AvatarURL,
	}

	if p.users != nil {
		user, err := p.users.GetUserByID(ctx, claims.UserID)
		if err != nil || user == nil {
			return nil, ErrUnknownUser
		}
		// Profile fields in the token may be stale
		ident.Name = user.Name
		ident.AvatarURL = user.AvatarURL
	}

	return ident, nil
}

// StaticProvider resolves credentials from a fixed table. Used in tests
// and local development.
type StaticProvider struct {
	Users map[string]UserIdentity
}

func (p *StaticProvider) Verify(ctx context.Context, credential string) (*UserIdentity, error) {
	if credential == "" {
		return nil, ErrMissingCredential
	}
	ident, ok := p.Users[credential]
	if !ok {
		return nil, ErrInvalidCredential
	}
	return &ident, nil
}
