package models

import (
	"time"
)

// Message types
const (
	MessageTypeText   = "text"
	MessageTypeImage  = "image"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

// Message represents a persisted chat message. Scope and sender are
// immutable after creation; reads and reactions are the only fields other
// users may mutate. Deletion is soft: the row stays addressable by id but
// is excluded from history reads.
type Message struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	ScopeType    string     `json:"scope_type" gorm:"size:16;index:idx_messages_scope"`
	ScopeID      string     `json:"scope_id" gorm:"size:64;index:idx_messages_scope"`
	SenderID     uint       `json:"sender_id" gorm:"index"`
	SenderName   string     `json:"sender_name"`
	SenderAvatar string     `json:"sender_avatar,omitempty"`
	Content      string     `json:"content"`
	Type         string     `json:"type" gorm:"size:16;default:text"`
	MediaURL     string     `json:"media_url,omitempty" gorm:"size:512"`
	MediaName    string     `json:"media_name,omitempty"`
	MediaSize    int64      `json:"media_size,omitempty"`
	ReplyToID    *uint      `json:"reply_to_id,omitempty"`
	Mentions     []uint     `json:"mentions,omitempty" gorm:"serializer:json"`
	Edited       bool       `json:"edited"`
	EditedAt     *time.Time `json:"edited_at,omitempty"`
	Deleted      bool       `json:"deleted" gorm:"index"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"index"`

	Reads     []MessageRead     `json:"read_by" gorm:"foreignKey:MessageID"`
	Reactions []MessageReaction `json:"reactions" gorm:"foreignKey:MessageID"`
}

// MessageRead is one user's read receipt for one message. The composite
// primary key makes the receipt naturally idempotent: a second insert for
// the same (message, user) pair conflicts and is dropped.
type MessageRead struct {
	MessageID uint      `json:"-" gorm:"primaryKey;autoIncrement:false"`
	UserID    uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	ReadAt    time.Time `json:"read_at"`
}

// MessageReaction is one user's reaction to one message. At most one row
// per (message, user); adding again replaces the emoji (last write wins).
type MessageReaction struct {
	MessageID uint      `json:"-" gorm:"primaryKey;autoIncrement:false"`
	UserID    uint      `json:"user_id" gorm:"primaryKey;autoIncrement:false"`
	Emoji     string    `json:"emoji" gorm:"size:32"`
	ReactedAt time.Time `json:"reacted_at"`
}

// HasMedia reports whether the message carries a media reference
func (m *Message) HasMedia() bool {
	return m.MediaURL != ""
}

// ReadBy reports whether the given user has a read receipt on the message
func (m *Message) ReadBy(userID uint) bool {
	for _, r := range m.Reads {
		if r.UserID == userID {
			return true
		}
	}
	return false
}
