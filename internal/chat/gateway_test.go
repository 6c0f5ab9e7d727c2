package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherhub/backend/internal/identity"
	apperrors "gatherhub/backend/pkg/errors"
)

func newGatewayFixture() (*Gateway, *Hub) {
	hub := NewHub(testLogger())
	provider := &identity.StaticProvider{Users: map[string]identity.UserIdentity{
		"token-ada": {ID: 1, Name: "ada", AvatarURL: "https://cdn.example/ada.png"},
	}}
	return NewGateway(provider, nil, hub, 16, testLogger()), hub
}

func TestAuthenticateCreatesRegisteredSession(t *testing.T) {
	gateway, hub := newGatewayFixture()

	s, err := gateway.Authenticate(context.Background(), "token-ada")
	require.NoError(t, err)
	assert.Equal(t, uint(1), s.UserID)
	assert.Equal(t, "ada", s.UserName)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, 1, hub.SessionCount())
}

func TestAuthenticateFailuresCollapseToOneCode(t *testing.T) {
	gateway, hub := newGatewayFixture()

	// Missing and invalid credentials are indistinguishable to the caller
	for _, credential := range []string{"", "token-forged"} {
		_, err := gateway.Authenticate(context.Background(), credential)
		require.Error(t, err)
		assert.Equal(t, "AUTHENTICATION_FAILED", apperrors.GetErrorCode(err))
		assert.Equal(t, 401, apperrors.GetStatusCode(err))
	}
	assert.Equal(t, 0, hub.SessionCount())
}

func TestConcurrentSessionsForOneUser(t *testing.T) {
	gateway, hub := newGatewayFixture()

	phone, err := gateway.Authenticate(context.Background(), "token-ada")
	require.NoError(t, err)
	laptop, err := gateway.Authenticate(context.Background(), "token-ada")
	require.NoError(t, err)

	assert.NotEqual(t, phone.ID, laptop.ID)
	assert.Equal(t, 2, hub.SessionCount())
}

func TestDisconnectLeavesRoomsAndClosesSession(t *testing.T) {
	gateway, hub := newGatewayFixture()

	s, err := gateway.Authenticate(context.Background(), "token-ada")
	require.NoError(t, err)
	scope := Scope{Type: ScopeGroup, ID: "1"}
	hub.Rooms.Join(s, scope)

	gateway.Disconnect(s)

	assert.True(t, s.Closed())
	assert.False(t, hub.Rooms.IsMember(s, scope))
	assert.Equal(t, 0, hub.SessionCount())
	// Delivery after disconnect is refused, not queued
	assert.False(t, s.Deliver(Event{Type: EventNewMessage}))
}
