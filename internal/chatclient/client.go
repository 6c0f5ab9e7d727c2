package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"gatherhub/backend/internal/chat"
	"gatherhub/backend/pkg/logger"
)

// Stream is one live, authenticated connection to the gateway
type Stream interface {
	// Emit sends one client event
	Emit(eventType string, payload any) error
	// Events yields server events until the connection drops
	Events() <-chan chat.Event
	Close() error
}

// Transport dials new streams; implementations wrap the websocket layer
type Transport interface {
	Dial(ctx context.Context) (Stream, error)
}

// HistoryFetcher pulls a room's newest history page over the read path,
// used to repair the gap a disconnection leaves behind
type HistoryFetcher interface {
	FetchLatest(ctx context.Context, scope chat.Scope) ([]chat.MessageView, error)
}

// Client reconciles optimistic local state with the server's event
// stream and keeps the connection alive across transport losses.
type Client struct {
	mu      sync.Mutex
	stream  Stream
	rooms   map[string]chat.Scope
	typing  map[string]map[uint]string // room key -> user id -> name

	transport Transport
	history   HistoryFetcher
	identity  chat.SenderView
	view      *View
	rec       *Reconnector
	log       *logger.Logger

	newCorrelationID func() string
}

type ClientOptions struct {
	Transport Transport
	History   HistoryFetcher
	Identity  chat.SenderView
	Policy    ReconnectPolicy
	Logger    *logger.Logger
	// DedupeCap bounds the duplicate-detection cache; zero means default
	DedupeCap int
}

func NewClient(opts ClientOptions) *Client {
	if opts.Logger == nil {
		opts.Logger = logger.GetGlobal()
	}
	c := &Client{
		rooms:            make(map[string]chat.Scope),
		typing:           make(map[string]map[uint]string),
		transport:        opts.Transport,
		history:          opts.History,
		identity:         opts.Identity,
		view:             NewView(opts.DedupeCap),
		log:              opts.Logger,
		newCorrelationID: uuid.NewString,
	}
	c.rec = NewReconnector(opts.Policy, c.redial, opts.Logger).WithRestore(c.restore)
	return c
}

// View exposes the reconciled message state
func (c *Client) View() *View { return c.view }

// State reports the connection lifecycle state
func (c *Client) State() State { return c.rec.State() }

// Connect dials the gateway and starts consuming its event stream
func (c *Client) Connect(ctx context.Context) error {
	return c.rec.Connect(ctx)
}

// JoinRoom subscribes to a room; the subscription survives reconnects
func (c *Client) JoinRoom(ctx context.Context, scope chat.Scope) error {
	if !scope.Valid() {
		return fmt.Errorf("invalid scope %q", scope.RoomKey())
	}

	c.mu.Lock()
	c.rooms[scope.RoomKey()] = scope
	st := c.stream
	c.mu.Unlock()

	if st == nil {
		return nil // joined on the next (re)connect
	}
	return st.Emit(chat.EventJoinRoom, chat.JoinRoomPayload{
		ScopeType: string(scope.Type),
		ScopeID:   scope.ID,
	})
}

// LeaveRoom drops the subscription
func (c *Client) LeaveRoom(ctx context.Context, scope chat.Scope) error {
	c.mu.Lock()
	delete(c.rooms, scope.RoomKey())
	st := c.stream
	c.mu.Unlock()

	if st == nil {
		return nil
	}
	return st.Emit(chat.EventLeaveRoom, chat.JoinRoomPayload{
		ScopeType: string(scope.Type),
		ScopeID:   scope.ID,
	})
}

// SendMessage renders the message optimistically and fires the send. The
// returned correlation id identifies the placeholder until the ack or
// broadcast swaps in the durable id. Sends while offline fail in place;
// nothing is queued for silent replay.
func (c *Client) SendMessage(ctx context.Context, scope chat.Scope, content string) string {
	corr := c.newCorrelationID()
	c.view.AppendLocal(corr, scope, c.identity, content)
	c.emitSend(corr, scope, content)
	return corr
}

// Retry re-sends a failed placeholder. This is the only resend path: it
// exists so a deliberate user action, never the reducer, repeats a send.
func (c *Client) Retry(ctx context.Context, correlationID string) error {
	var target *ViewMessage
	for _, m := range c.view.Pending() {
		if m.CorrelationID == correlationID {
			cp := m
			target = &cp
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no pending message %s", correlationID)
	}
	if target.Status != StatusFailed {
		return fmt.Errorf("message %s is still in flight", correlationID)
	}
	scope := chat.Scope{Type: chat.ScopeType(target.ScopeType), ID: target.ScopeID}
	c.emitSend(correlationID, scope, target.Content)
	return nil
}

// MarkRead reports the given messages as read
func (c *Client) MarkRead(ctx context.Context, scope chat.Scope, messageIDs []uint) error {
	st := c.currentStream()
	if st == nil {
		return fmt.Errorf("not connected")
	}
	return st.Emit(chat.EventMarkRead, chat.MarkReadPayload{
		ScopeType:  string(scope.Type),
		ScopeID:    scope.ID,
		MessageIDs: messageIDs,
	})
}

// SetTyping signals the typing state for a room
func (c *Client) SetTyping(ctx context.Context, scope chat.Scope, typing bool) error {
	st := c.currentStream()
	if st == nil {
		return nil // typing is ephemeral, nothing to do offline
	}
	event := chat.EventTypingStop
	if typing {
		event = chat.EventTypingStart
	}
	return st.Emit(event, chat.TypingPayload{
		ScopeType: string(scope.Type),
		ScopeID:   scope.ID,
	})
}

// TypingUsers lists who is currently typing in a room
func (c *Client) TypingUsers(scope chat.Scope) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var names []string
	for _, name := range c.typing[scope.RoomKey()] {
		names = append(names, name)
	}
	return names
}

// Close tears the connection down terminally
func (c *Client) Close() error {
	c.rec.Close()
	st := c.currentStream()
	if st != nil {
		return st.Close()
	}
	return nil
}

// HandleEvent applies one server event to the local state. The read loop
// drives it in production; tests feed it synthetic sequences directly.
func (c *Client) HandleEvent(evt chat.Event) {
	switch evt.Type {
	case chat.EventMessageSent:
		var p chat.MessageSentPayload
		if decode(evt.Content, &p) {
			c.view.ApplyAck(p)
		}
	case chat.EventNewMessage:
		var p chat.NewMessagePayload
		if decode(evt.Content, &p) {
			c.view.ApplyBroadcast(p)
		}
	case chat.EventMessageError:
		var p chat.MessageErrorPayload
		if decode(evt.Content, &p) {
			if p.CorrelationID != "" {
				c.view.ApplyError(p)
			} else {
				c.log.Warn("server rejected event", "code", p.Code, "reason", p.Reason)
			}
		}
	case chat.EventUserTyping:
		var p chat.UserTypingPayload
		if decode(evt.Content, &p) {
			c.applyTyping(p)
		}
	}
}

func (c *Client) applyTyping(p chat.UserTypingPayload) {
	key := p.ScopeType + ":" + p.ScopeID

	c.mu.Lock()
	defer c.mu.Unlock()

	if p.IsTyping {
		if c.typing[key] == nil {
			c.typing[key] = make(map[uint]string)
		}
		c.typing[key][p.UserID] = p.UserName
		return
	}
	delete(c.typing[key], p.UserID)
	if len(c.typing[key]) == 0 {
		delete(c.typing, key)
	}
}

func (c *Client) emitSend(correlationID string, scope chat.Scope, content string) {
	st := c.currentStream()
	if st == nil {
		c.view.ApplyError(chat.MessageErrorPayload{
			CorrelationID: correlationID,
			Code:          "OFFLINE",
			Reason:        "not connected",
		})
		return
	}
	err := st.Emit(chat.EventSendMessage, chat.SendMessagePayload{
		ScopeType:     string(scope.Type),
		ScopeID:       scope.ID,
		Content:       content,
		CorrelationID: correlationID,
	})
	if err != nil {
		c.view.ApplyError(chat.MessageErrorPayload{
			CorrelationID: correlationID,
			Code:          "TRANSPORT_ERROR",
			Reason:        err.Error(),
		})
	}
}

func (c *Client) currentStream() Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

// redial is the dial hook the reconnector drives
func (c *Client) redial(ctx context.Context) error {
	st, err := c.transport.Dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.stream = st
	c.mu.Unlock()

	go c.readLoop(ctx, st)
	return nil
}

// restore re-subscribes every room and repairs the history gap after a
// successful reconnect. Pending local messages stay pending; restoration
// never re-sends on the user's behalf.
func (c *Client) restore(ctx context.Context) error {
	c.mu.Lock()
	st := c.stream
	scopes := make([]chat.Scope, 0, len(c.rooms))
	for _, s := range c.rooms {
		scopes = append(scopes, s)
	}
	c.mu.Unlock()

	for _, scope := range scopes {
		if err := st.Emit(chat.EventJoinRoom, chat.JoinRoomPayload{
			ScopeType: string(scope.Type),
			ScopeID:   scope.ID,
		}); err != nil {
			return fmt.Errorf("rejoin %s: %w", scope.RoomKey(), err)
		}
		if c.history == nil {
			continue
		}
		page, err := c.history.FetchLatest(ctx, scope)
		if err != nil {
			c.log.Warn("history repair failed", "room", scope.RoomKey(), "error", err.Error())
			continue
		}
		c.view.MergeHistory(page)
	}
	return nil
}

// readLoop consumes one stream until it drops, then hands control to the
// reconnector
func (c *Client) readLoop(ctx context.Context, st Stream) {
	for evt := range st.Events() {
		c.HandleEvent(evt)
	}

	c.mu.Lock()
	current := c.stream == st
	if current {
		c.stream = nil
	}
	c.mu.Unlock()

	if !current || c.rec.State() == StateClosed || ctx.Err() != nil {
		return
	}
	if err := c.rec.OnTransportLoss(ctx); err != nil {
		c.log.Error("connection lost permanently", "error", err.Error())
	}
}

// decode converts an event payload, whether it arrived as a struct from
// in-process wiring or as decoded JSON off the wire
func decode(content any, target any) bool {
	raw, err := json.Marshal(content)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, target) == nil
}
