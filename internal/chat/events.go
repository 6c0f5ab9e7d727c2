package chat

import (
	"encoding/json"
	"time"

	"gatherhub/backend/internal/models"
)

// Inbound event types
const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventSendMessage    = "send-message"
	EventMarkRead       = "mark-read"
	EventTypingStart    = "typing-start"
	EventTypingStop     = "typing-stop"
	EventEditMessage    = "edit-message"
	EventDeleteMessage  = "delete-message"
	EventAddReaction    = "add-reaction"
	EventRemoveReaction = "remove-reaction"
)

// Outbound event types
const (
	EventMessageSent     = "message-sent"
	EventNewMessage      = "new-message"
	EventMessageError    = "message-error"
	EventMessagesRead    = "messages-read"
	EventUserTyping      = "user-typing"
	EventMessageEdited   = "message-edited"
	EventMessageDeleted  = "message-deleted"
	EventMessageReaction = "message-reaction"
	EventRoomJoined      = "room-joined"
	EventRoomLeft        = "room-left"
)

// Event is one outbound frame delivered to a session
type Event struct {
	Type    string `json:"type"`
	Content any    `json:"content"`
}

// InboundEvent is one frame received from a session; the content stays raw
// until the dispatcher hands it to a typed handler
type InboundEvent struct {
	Type    string          `json:"type"`
	Content json.RawMessage `json:"content"`
}

// MediaRef is an opaque reference to an out-of-band uploaded file
type MediaRef struct {
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// Inbound payloads

type JoinRoomPayload struct {
	ScopeType string `json:"scope_type"`
	ScopeID   string `json:"scope_id"`
}

func (p JoinRoomPayload) Scope() Scope {
	return Scope{Type: ScopeType(p.ScopeType), ID: p.ScopeID}
}

type SendMessagePayload struct {
	ScopeType     string    `json:"scope_type"`
	ScopeID       string    `json:"scope_id"`
	Content       string    `json:"content"`
	Type          string    `json:"type,omitempty"`
	Media         *MediaRef `json:"media,omitempty"`
	ReplyToID     *uint     `json:"reply_to_id,omitempty"`
	Mentions      []uint    `json:"mentions,omitempty"`
	CorrelationID string    `json:"correlation_id"`
}

func (p SendMessagePayload) Scope() Scope {
	return Scope{Type: ScopeType(p.ScopeType), ID: p.ScopeID}
}

type MarkReadPayload struct {
	ScopeType  string `json:"scope_type"`
	ScopeID    string `json:"scope_id"`
	MessageIDs []uint `json:"message_ids"`
}

func (p MarkReadPayload) Scope() Scope {
	return Scope{Type: ScopeType(p.ScopeType), ID: p.ScopeID}
}

type TypingPayload struct {
	ScopeType string `json:"scope_type"`
	ScopeID   string `json:"scope_id"`
}

func (p TypingPayload) Scope() Scope {
	return Scope{Type: ScopeType(p.ScopeType), ID: p.ScopeID}
}

type EditMessagePayload struct {
	MessageID uint   `json:"message_id"`
	Content   string `json:"content"`
}

type DeleteMessagePayload struct {
	MessageID uint `json:"message_id"`
}

type ReactionPayload struct {
	MessageID uint   `json:"message_id"`
	Emoji     string `json:"emoji,omitempty"`
}

// Outbound payloads

type MessageSentPayload struct {
	CorrelationID string `json:"correlation_id"`
	MessageID     uint   `json:"message_id"`
}

type MessageErrorPayload struct {
	CorrelationID string `json:"correlation_id,omitempty"`
	Code          string `json:"code"`
	Reason        string `json:"reason"`
}

type NewMessagePayload struct {
	Message MessageView `json:"message"`
	// CorrelationID lets the sender's own devices collapse an optimistic
	// placeholder when the broadcast beats the direct ack
	CorrelationID string `json:"correlation_id,omitempty"`
}

type MessagesReadPayload struct {
	ScopeType  string `json:"scope_type"`
	ScopeID    string `json:"scope_id"`
	UserID     uint   `json:"user_id"`
	MessageIDs []uint `json:"message_ids"`
}

type UserTypingPayload struct {
	ScopeType string `json:"scope_type"`
	ScopeID   string `json:"scope_id"`
	UserID    uint   `json:"user_id"`
	UserName  string `json:"user_name"`
	IsTyping  bool   `json:"is_typing"`
}

type MessageDeletedPayload struct {
	ScopeType string `json:"scope_type"`
	ScopeID   string `json:"scope_id"`
	MessageID uint   `json:"message_id"`
}

type MessageReactionPayload struct {
	ScopeType string `json:"scope_type"`
	ScopeID   string `json:"scope_id"`
	MessageID uint   `json:"message_id"`
	UserID    uint   `json:"user_id"`
	Emoji     string `json:"emoji,omitempty"`
	Removed   bool   `json:"removed,omitempty"`
}

type RoomJoinedPayload struct {
	ScopeType string `json:"scope_type"`
	ScopeID   string `json:"scope_id"`
	Online    int    `json:"online"`
}

// Views projected onto the wire. Only public sender fields leave the server.

type SenderView struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type ReadReceiptView struct {
	UserID uint      `json:"user_id"`
	ReadAt time.Time `json:"read_at"`
}

type ReactionView struct {
	UserID    uint      `json:"user_id"`
	Emoji     string    `json:"emoji"`
	ReactedAt time.Time `json:"reacted_at"`
}

type MessageView struct {
	ID        uint              `json:"id"`
	ScopeType string            `json:"scope_type"`
	ScopeID   string            `json:"scope_id"`
	Sender    SenderView        `json:"sender"`
	Content   string            `json:"content"`
	Type      string            `json:"type"`
	Media     *MediaRef         `json:"media,omitempty"`
	ReplyToID *uint             `json:"reply_to_id,omitempty"`
	Mentions  []uint            `json:"mentions,omitempty"`
	Edited    bool              `json:"edited,omitempty"`
	EditedAt  *time.Time        `json:"edited_at,omitempty"`
	ReadBy    []ReadReceiptView `json:"read_by"`
	Reactions []ReactionView    `json:"reactions"`
	CreatedAt time.Time         `json:"created_at"`
}

// ViewOf projects a stored message onto its wire shape
func ViewOf(m *models.Message) MessageView {
	view := MessageView{
		ID:        m.ID,
		ScopeType: m.ScopeType,
		ScopeID:   m.ScopeID,
		Sender: SenderView{
			ID:        m.SenderID,
			Name:      m.SenderName,
			AvatarURL: m.SenderAvatar,
		},
		Content:   m.Content,
		Type:      m.Type,
		ReplyToID: m.ReplyToID,
		Mentions:  m.Mentions,
		Edited:    m.Edited,
		EditedAt:  m.EditedAt,
		ReadBy:    make([]ReadReceiptView, 0, len(m.Reads)),
		Reactions: make([]ReactionView, 0, len(m.Reactions)),
		CreatedAt: m.CreatedAt,
	}

	if m.HasMedia() {
		view.Media = &MediaRef{URL: m.MediaURL, Filename: m.MediaName, Size: m.MediaSize}
	}

	for _, r := range m.Reads {
		view.ReadBy = append(view.ReadBy, ReadReceiptView{UserID: r.UserID, ReadAt: r.ReadAt})
	}
	for _, r := range m.Reactions {
		view.Reactions = append(view.Reactions, ReactionView{UserID: r.UserID, Emoji: r.Emoji, ReactedAt: r.ReactedAt})
	}

	return view
}
