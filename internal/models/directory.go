package models

import "time"

// Group and Event are the directory entities chat rooms hang off. The
// chat core never manages them; it only consults membership when a
// session asks to join a room.

type Group struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	OwnerID   uint      `gorm:"index" json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Event struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Title     string    `json:"title"`
	GroupID   *uint     `gorm:"index" json:"group_id,omitempty"`
	HostID    uint      `gorm:"index" json:"host_id"`
	StartsAt  time.Time `json:"starts_at"`
	CreatedAt time.Time `json:"created_at"`
}

type GroupMember struct {
	GroupID  uint      `gorm:"primaryKey;autoIncrement:false" json:"group_id"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

type EventAttendee struct {
	EventID  uint      `gorm:"primaryKey;autoIncrement:false" json:"event_id"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}
