package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherhub/backend/internal/repository"
	apperrors "gatherhub/backend/pkg/errors"
	"gatherhub/backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func newIngestFixture(t *testing.T) (*Ingest, *RoomManager, *repository.MemoryMessageRepository) {
	t.Helper()
	repo := repository.NewMemoryMessageRepository()
	rooms := NewRoomManager()
	return NewIngest(repo, rooms, 1000, testLogger()), rooms, repo
}

func joinedSession(rooms *RoomManager, userID uint, name string, scope Scope) *Session {
	s := NewSession(userID, name, "", 16)
	rooms.Join(s, scope)
	return s
}

func TestSendPersistsAcksAndBroadcasts(t *testing.T) {
	ingest, rooms, repo := newIngestFixture(t)
	scope := Scope{Type: ScopeGroup, ID: "42"}
	s := joinedSession(rooms, 7, "ada", scope)

	effects, err := ingest.Send(context.Background(), s, SendMessagePayload{
		ScopeType:     "group",
		ScopeID:       "42",
		Content:       "hello",
		CorrelationID: "corr-1",
	})
	require.NoError(t, err)
	require.Len(t, effects, 2)

	ack := effects[0]
	assert.False(t, ack.Broadcast)
	assert.Equal(t, EventMessageSent, ack.Event.Type)
	ackPayload := ack.Event.Content.(MessageSentPayload)
	assert.Equal(t, "corr-1", ackPayload.CorrelationID)
	assert.NotZero(t, ackPayload.MessageID)

	fanout := effects[1]
	assert.True(t, fanout.Broadcast)
	assert.Equal(t, scope, fanout.Scope)
	assert.Equal(t, EventNewMessage, fanout.Event.Type)
	view := fanout.Event.Content.(NewMessagePayload)
	assert.Equal(t, "corr-1", view.CorrelationID)
	assert.Equal(t, "hello", view.Message.Content)
	assert.Equal(t, ackPayload.MessageID, view.Message.ID)

	stored, err := repo.GetByID(context.Background(), ackPayload.MessageID)
	require.NoError(t, err)
	assert.Equal(t, uint(7), stored.SenderID)
	// The sender reads their own message at creation
	require.Len(t, stored.Reads, 1)
	assert.Equal(t, uint(7), stored.Reads[0].UserID)
}

func TestSendValidationOrder(t *testing.T) {
	ingest, _, _ := newIngestFixture(t)
	outsider := NewSession(9, "eve", "", 16) // never joins the room

	tests := []struct {
		name     string
		payload  SendMessagePayload
		wantCode string
	}{
		{
			name:     "empty content rejected before membership",
			payload:  SendMessagePayload{ScopeType: "group", ScopeID: "42", Content: "   "},
			wantCode: apperrors.CodeEmptyMessage,
		},
		{
			name:     "oversized content rejected before membership",
			payload:  SendMessagePayload{ScopeType: "group", ScopeID: "42", Content: strings.Repeat("x", 1001)},
			wantCode: apperrors.CodeMessageTooLong,
		},
		{
			name:     "valid content from non-member rejected on membership",
			payload:  SendMessagePayload{ScopeType: "group", ScopeID: "42", Content: "hi"},
			wantCode: "NOT_ROOM_MEMBER",
		},
		{
			name:     "invalid scope",
			payload:  SendMessagePayload{ScopeType: "channel", ScopeID: "42", Content: "hi"},
			wantCode: "INVALID_SCOPE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ingest.Send(context.Background(), outsider, tt.payload)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, apperrors.GetErrorCode(err))
		})
	}
}

func TestSendLengthCountsRunesNotBytes(t *testing.T) {
	repo := repository.NewMemoryMessageRepository()
	rooms := NewRoomManager()
	ingest := NewIngest(repo, rooms, 10, testLogger())
	scope := Scope{Type: ScopeEvent, ID: "3"}
	s := joinedSession(rooms, 1, "li", scope)

	// Ten multibyte runes are within a ten-rune limit
	_, err := ingest.Send(context.Background(), s, SendMessagePayload{
		ScopeType: "event", ScopeID: "3", Content: strings.Repeat("é", 10),
	})
	assert.NoError(t, err)

	_, err = ingest.Send(context.Background(), s, SendMessagePayload{
		ScopeType: "event", ScopeID: "3", Content: strings.Repeat("é", 11),
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeMessageTooLong, apperrors.GetErrorCode(err))
}

func TestSendMediaOnlyMessageAllowed(t *testing.T) {
	ingest, rooms, _ := newIngestFixture(t)
	scope := Scope{Type: ScopeGroup, ID: "8"}
	s := joinedSession(rooms, 2, "bo", scope)

	effects, err := ingest.Send(context.Background(), s, SendMessagePayload{
		ScopeType: "group",
		ScopeID:   "8",
		Type:      "image",
		Media:     &MediaRef{URL: "https://cdn.example/pic.png", Filename: "pic.png", Size: 1024},
	})
	require.NoError(t, err)
	require.Len(t, effects, 2)
	view := effects[1].Event.Content.(NewMessagePayload)
	assert.Equal(t, "https://cdn.example/pic.png", view.Message.Media.URL)
}

func TestSendTimestampsStayMonotonicPerRoom(t *testing.T) {
	repo := repository.NewMemoryMessageRepository()
	rooms := NewRoomManager()
	ingest := NewIngest(repo, rooms, 1000, testLogger())

	// Wall clock steps backwards between sends
	clock := []time.Time{
		time.Date(2026, 8, 1, 12, 0, 10, 0, time.UTC),
		time.Date(2026, 8, 1, 12, 0, 5, 0, time.UTC),
		time.Date(2026, 8, 1, 12, 0, 20, 0, time.UTC),
	}
	idx := 0
	ingest.now = func() time.Time {
		ts := clock[idx]
		idx++
		return ts
	}

	scope := Scope{Type: ScopeGroup, ID: "1"}
	s := joinedSession(rooms, 4, "kai", scope)

	var created []time.Time
	for n := 0; n < 3; n++ {
		effects, err := ingest.Send(context.Background(), s, SendMessagePayload{
			ScopeType: "group", ScopeID: "1", Content: "m",
		})
		require.NoError(t, err)
		view := effects[1].Event.Content.(NewMessagePayload)
		created = append(created, view.Message.CreatedAt)
	}

	assert.False(t, created[1].Before(created[0]), "timestamps must not regress")
	assert.False(t, created[2].Before(created[1]))
}

func TestEditRequiresSender(t *testing.T) {
	ingest, rooms, _ := newIngestFixture(t)
	scope := Scope{Type: ScopeGroup, ID: "5"}
	author := joinedSession(rooms, 1, "ada", scope)
	other := joinedSession(rooms, 2, "eve", scope)

	effects, err := ingest.Send(context.Background(), author, SendMessagePayload{
		ScopeType: "group", ScopeID: "5", Content: "original",
	})
	require.NoError(t, err)
	msgID := effects[0].Event.Content.(MessageSentPayload).MessageID

	_, err = ingest.Edit(context.Background(), other, EditMessagePayload{MessageID: msgID, Content: "hijacked"})
	require.Error(t, err)
	assert.Equal(t, "NOT_ROOM_MEMBER", apperrors.GetErrorCode(err))

	edited, err := ingest.Edit(context.Background(), author, EditMessagePayload{MessageID: msgID, Content: "fixed"})
	require.NoError(t, err)
	require.Len(t, edited, 1)
	view := edited[0].Event.Content.(NewMessagePayload)
	assert.True(t, view.Message.Edited)
	assert.Equal(t, "fixed", view.Message.Content)
}

func TestDeleteHidesMessageFromLaterOperations(t *testing.T) {
	ingest, rooms, _ := newIngestFixture(t)
	scope := Scope{Type: ScopeEvent, ID: "77"}
	s := joinedSession(rooms, 3, "mia", scope)

	effects, err := ingest.Send(context.Background(), s, SendMessagePayload{
		ScopeType: "event", ScopeID: "77", Content: "ephemeral",
	})
	require.NoError(t, err)
	msgID := effects[0].Event.Content.(MessageSentPayload).MessageID

	deleted, err := ingest.Delete(context.Background(), s, DeleteMessagePayload{MessageID: msgID})
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.Equal(t, EventMessageDeleted, deleted[0].Event.Type)

	// The row still exists in storage but no longer resolves
	_, err = ingest.Edit(context.Background(), s, EditMessagePayload{MessageID: msgID, Content: "zombie"})
	require.Error(t, err)
	assert.Equal(t, "MESSAGE_NOT_FOUND", apperrors.GetErrorCode(err))

	_, err = ingest.Delete(context.Background(), s, DeleteMessagePayload{MessageID: msgID})
	require.Error(t, err)
	assert.Equal(t, "MESSAGE_NOT_FOUND", apperrors.GetErrorCode(err))
}

func TestReactionsUpsertAndRemove(t *testing.T) {
	ingest, rooms, repo := newIngestFixture(t)
	scope := Scope{Type: ScopeGroup, ID: "9"}
	author := joinedSession(rooms, 1, "ada", scope)
	reactor := joinedSession(rooms, 2, "bo", scope)

	effects, err := ingest.Send(context.Background(), author, SendMessagePayload{
		ScopeType: "group", ScopeID: "9", Content: "react to me",
	})
	require.NoError(t, err)
	msgID := effects[0].Event.Content.(MessageSentPayload).MessageID

	_, err = ingest.AddReaction(context.Background(), reactor, ReactionPayload{MessageID: msgID, Emoji: "👍"})
	require.NoError(t, err)

	// A second reaction by the same user replaces the first
	_, err = ingest.AddReaction(context.Background(), reactor, ReactionPayload{MessageID: msgID, Emoji: "🎉"})
	require.NoError(t, err)

	stored, err := repo.GetByID(context.Background(), msgID)
	require.NoError(t, err)
	require.Len(t, stored.Reactions, 1)
	assert.Equal(t, "🎉", stored.Reactions[0].Emoji)

	removal, err := ingest.RemoveReaction(context.Background(), reactor, ReactionPayload{MessageID: msgID})
	require.NoError(t, err)
	payload := removal[0].Event.Content.(MessageReactionPayload)
	assert.True(t, payload.Removed)

	// Removing again stays a no-op
	_, err = ingest.RemoveReaction(context.Background(), reactor, ReactionPayload{MessageID: msgID})
	assert.NoError(t, err)
}
