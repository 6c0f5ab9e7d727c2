package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatherhub/backend/internal/directory"
	"gatherhub/backend/internal/repository"
)

// deniedDirectory rejects everyone except the listed user ids
type deniedDirectory struct {
	allowed map[uint]struct{}
}

func (d *deniedDirectory) CanJoin(ctx context.Context, scopeType, scopeID string, userID uint) (bool, error) {
	_, ok := d.allowed[userID]
	return ok, nil
}

func newDispatcherFixture(t *testing.T, dir directory.Directory) (*Dispatcher, *Hub) {
	t.Helper()
	repo := repository.NewMemoryMessageRepository()
	hub := NewHub(testLogger())
	ingest := NewIngest(repo, hub.Rooms, 1000, testLogger())
	receipts := NewReceipts(repo, hub.Rooms)
	typing := NewTyping(hub.Rooms, hub, nil, 5*time.Second, false, testLogger())

	d := NewChatDispatcher(hub, Services{
		Ingest:    ingest,
		Receipts:  receipts,
		Typing:    typing,
		Directory: dir,
	}, testLogger())
	return d, hub
}

func frame(t *testing.T, eventType string, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	out, err := json.Marshal(InboundEvent{Type: eventType, Content: raw})
	require.NoError(t, err)
	return out
}

func nextEvent(t *testing.T, s *Session) Event {
	t.Helper()
	select {
	case evt := <-s.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func TestDispatchJoinSendAndFanOut(t *testing.T) {
	d, hub := newDispatcherFixture(t, directory.AllowAll{})
	ctx := context.Background()

	sender := NewSession(1, "ada", "", 16)
	receiver := NewSession(2, "bo", "", 16)
	hub.Register(sender)
	hub.Register(receiver)

	join := JoinRoomPayload{ScopeType: "group", ScopeID: "7"}
	d.Dispatch(ctx, sender, frame(t, EventJoinRoom, join))
	d.Dispatch(ctx, receiver, frame(t, EventJoinRoom, join))
	require.Equal(t, EventRoomJoined, nextEvent(t, sender).Type)
	require.Equal(t, EventRoomJoined, nextEvent(t, receiver).Type)

	d.Dispatch(ctx, sender, frame(t, EventSendMessage, SendMessagePayload{
		ScopeType:     "group",
		ScopeID:       "7",
		Content:       "hi room",
		CorrelationID: "c-1",
	}))

	// The sender gets the ack first, then its own copy of the broadcast
	ack := nextEvent(t, sender)
	require.Equal(t, EventMessageSent, ack.Type)
	assert.Equal(t, "c-1", ack.Content.(MessageSentPayload).CorrelationID)

	senderCopy := nextEvent(t, sender)
	require.Equal(t, EventNewMessage, senderCopy.Type)

	delivered := nextEvent(t, receiver)
	require.Equal(t, EventNewMessage, delivered.Type)
	payload := delivered.Content.(NewMessagePayload)
	assert.Equal(t, "hi room", payload.Message.Content)
	assert.Equal(t, "c-1", payload.CorrelationID)
}

func TestDispatchSendFailureGoesOnlyToOrigin(t *testing.T) {
	d, hub := newDispatcherFixture(t, directory.AllowAll{})
	ctx := context.Background()

	sender := NewSession(1, "ada", "", 16)
	bystander := NewSession(2, "bo", "", 16)
	hub.Register(sender)
	hub.Register(bystander)

	join := JoinRoomPayload{ScopeType: "group", ScopeID: "7"}
	d.Dispatch(ctx, sender, frame(t, EventJoinRoom, join))
	d.Dispatch(ctx, bystander, frame(t, EventJoinRoom, join))
	nextEvent(t, sender)
	nextEvent(t, bystander)

	d.Dispatch(ctx, sender, frame(t, EventSendMessage, SendMessagePayload{
		ScopeType:     "group",
		ScopeID:       "7",
		Content:       "   ",
		CorrelationID: "c-9",
	}))

	evt := nextEvent(t, sender)
	require.Equal(t, EventMessageError, evt.Type)
	errPayload := evt.Content.(MessageErrorPayload)
	assert.Equal(t, "EMPTY_MESSAGE", errPayload.Code)
	// The correlation id travels with the rejection so the client can
	// mark the right placeholder failed
	assert.Equal(t, "c-9", errPayload.CorrelationID)

	select {
	case evt := <-bystander.Events():
		t.Fatalf("bystander received %q for another session's failure", evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchJoinDeniedByDirectory(t *testing.T) {
	d, hub := newDispatcherFixture(t, &deniedDirectory{allowed: map[uint]struct{}{1: {}}})
	ctx := context.Background()

	member := NewSession(1, "ada", "", 16)
	stranger := NewSession(66, "mallory", "", 16)
	hub.Register(member)
	hub.Register(stranger)

	join := JoinRoomPayload{ScopeType: "group", ScopeID: "7"}
	d.Dispatch(ctx, member, frame(t, EventJoinRoom, join))
	require.Equal(t, EventRoomJoined, nextEvent(t, member).Type)

	d.Dispatch(ctx, stranger, frame(t, EventJoinRoom, join))
	evt := nextEvent(t, stranger)
	require.Equal(t, EventMessageError, evt.Type)
	assert.Equal(t, "NOT_ROOM_MEMBER", evt.Content.(MessageErrorPayload).Code)
	assert.False(t, hub.Rooms.IsMember(stranger, Scope{Type: ScopeGroup, ID: "7"}))
}

func TestDispatchUnknownEventTypeIsIgnored(t *testing.T) {
	d, hub := newDispatcherFixture(t, directory.AllowAll{})
	s := NewSession(1, "ada", "", 16)
	hub.Register(s)

	d.Dispatch(context.Background(), s, []byte(`{"type":"self-destruct","content":{}}`))

	select {
	case evt := <-s.Events():
		t.Fatalf("unexpected event %q", evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchMalformedFrameIsIgnored(t *testing.T) {
	d, hub := newDispatcherFixture(t, directory.AllowAll{})
	s := NewSession(1, "ada", "", 16)
	hub.Register(s)

	d.Dispatch(context.Background(), s, []byte(`not json at all`))

	select {
	case evt := <-s.Events():
		t.Fatalf("unexpected event %q", evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchPerRoomSequencing(t *testing.T) {
	d, hub := newDispatcherFixture(t, directory.AllowAll{})
	ctx := context.Background()

	sender := NewSession(1, "ada", "", 64)
	receiver := NewSession(2, "bo", "", 64)
	hub.Register(sender)
	hub.Register(receiver)

	join := JoinRoomPayload{ScopeType: "event", ScopeID: "55"}
	d.Dispatch(ctx, sender, frame(t, EventJoinRoom, join))
	d.Dispatch(ctx, receiver, frame(t, EventJoinRoom, join))
	nextEvent(t, sender)
	nextEvent(t, receiver)

	for n := 1; n <= 10; n++ {
		d.Dispatch(ctx, sender, frame(t, EventSendMessage, SendMessagePayload{
			ScopeType: "event", ScopeID: "55", Content: fmt.Sprintf("n-%d", n),
		}))
	}

	var lastID uint
	for n := 1; n <= 10; n++ {
		evt := nextEvent(t, receiver)
		require.Equal(t, EventNewMessage, evt.Type)
		msg := evt.Content.(NewMessagePayload).Message
		assert.Equal(t, fmt.Sprintf("n-%d", n), msg.Content)
		assert.Greater(t, msg.ID, lastID, "ids must advance with send order")
		lastID = msg.ID
	}
}
