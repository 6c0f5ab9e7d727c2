package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherhub/backend/internal/repository"
	apperrors "gatherhub/backend/pkg/errors"
)

func seedMessage(t *testing.T, ingest *Ingest, scope Scope, sender *Session, content string) uint {
	t.Helper()
	effects, err := ingest.Send(context.Background(), sender, SendMessagePayload{
		ScopeType: string(scope.Type),
		ScopeID:   scope.ID,
		Content:   content,
	})
	require.NoError(t, err)
	return effects[0].Event.Content.(MessageSentPayload).MessageID
}

func TestMarkReadRecordsAndNotifiesRoom(t *testing.T) {
	repo := repository.NewMemoryMessageRepository()
	rooms := NewRoomManager()
	ingest := NewIngest(repo, rooms, 1000, testLogger())
	receipts := NewReceipts(repo, rooms)

	scope := Scope{Type: ScopeGroup, ID: "10"}
	author := joinedSession(rooms, 1, "ada", scope)
	reader := joinedSession(rooms, 2, "bo", scope)

	id1 := seedMessage(t, ingest, scope, author, "first")
	id2 := seedMessage(t, ingest, scope, author, "second")

	effects, err := receipts.MarkRead(context.Background(), reader, MarkReadPayload{
		ScopeType:  "group",
		ScopeID:    "10",
		MessageIDs: []uint{id1, id2},
	})
	require.NoError(t, err)
	require.Len(t, effects, 1)

	effect := effects[0]
	assert.True(t, effect.Broadcast)
	assert.Equal(t, EventMessagesRead, effect.Event.Type)
	// The reading user's own sessions are skipped; they already know
	assert.Equal(t, reader.UserID, effect.ExceptUserID)

	payload := effect.Event.Content.(MessagesReadPayload)
	assert.Equal(t, reader.UserID, payload.UserID)
	assert.ElementsMatch(t, []uint{id1, id2}, payload.MessageIDs)

	stored, err := repo.GetByID(context.Background(), id1)
	require.NoError(t, err)
	assert.True(t, stored.ReadBy(reader.UserID))
}

func TestMarkReadIsIdempotent(t *testing.T) {
	repo := repository.NewMemoryMessageRepository()
	rooms := NewRoomManager()
	ingest := NewIngest(repo, rooms, 1000, testLogger())
	receipts := NewReceipts(repo, rooms)

	scope := Scope{Type: ScopeGroup, ID: "10"}
	author := joinedSession(rooms, 1, "ada", scope)
	reader := joinedSession(rooms, 2, "bo", scope)
	id := seedMessage(t, ingest, scope, author, "once")

	for n := 0; n < 3; n++ {
		_, err := receipts.MarkRead(context.Background(), reader, MarkReadPayload{
			ScopeType: "group", ScopeID: "10", MessageIDs: []uint{id},
		})
		require.NoError(t, err)
	}

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	// One receipt for the sender, one for the reader, no duplicates
	assert.Len(t, stored.Reads, 2)
}

func TestMarkReadSkipsUnknownMessages(t *testing.T) {
	repo := repository.NewMemoryMessageRepository()
	rooms := NewRoomManager()
	ingest := NewIngest(repo, rooms, 1000, testLogger())
	receipts := NewReceipts(repo, rooms)

	scope := Scope{Type: ScopeEvent, ID: "2"}
	author := joinedSession(rooms, 1, "ada", scope)
	reader := joinedSession(rooms, 2, "bo", scope)
	id := seedMessage(t, ingest, scope, author, "real")

	effects, err := receipts.MarkRead(context.Background(), reader, MarkReadPayload{
		ScopeType: "event", ScopeID: "2", MessageIDs: []uint{9999, id},
	})
	require.NoError(t, err)
	require.Len(t, effects, 1)
	payload := effects[0].Event.Content.(MessagesReadPayload)
	assert.Equal(t, []uint{id}, payload.MessageIDs)
}

func TestMarkReadAllUnknownProducesNoBroadcast(t *testing.T) {
	repo := repository.NewMemoryMessageRepository()
	rooms := NewRoomManager()
	receipts := NewReceipts(repo, rooms)

	scope := Scope{Type: ScopeGroup, ID: "1"}
	reader := joinedSession(rooms, 2, "bo", scope)

	effects, err := receipts.MarkRead(context.Background(), reader, MarkReadPayload{
		ScopeType: "group", ScopeID: "1", MessageIDs: []uint{404},
	})
	require.NoError(t, err)
	assert.Empty(t, effects)
}

func TestMarkReadRequiresMembership(t *testing.T) {
	repo := repository.NewMemoryMessageRepository()
	rooms := NewRoomManager()
	receipts := NewReceipts(repo, rooms)

	outsider := NewSession(5, "eve", "", 16)
	_, err := receipts.MarkRead(context.Background(), outsider, MarkReadPayload{
		ScopeType: "group", ScopeID: "1", MessageIDs: []uint{1},
	})
	require.Error(t, err)
	assert.Equal(t, "NOT_ROOM_MEMBER", apperrors.GetErrorCode(err))
}
