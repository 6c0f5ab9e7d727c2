package directory

import (
	"context"
	"strconv"

	"gatherhub/backend/internal/models"

	"gorm.io/gorm"
)

// Directory is the authoritative source of which rooms exist and who may
// join them. The chat core consults it when a session asks to join; it is
// an external collaborator, not part of the chat subsystem.
type Directory interface {
	CanJoin(ctx context.Context, scopeType, scopeID string, userID uint) (bool, error)
}

// GormDirectory answers membership questions from the platform tables
type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func (d *GormDirectory) CanJoin(ctx context.Context, scopeType, scopeID string, userID uint) (bool, error) {
	id, err := strconv.ParseUint(scopeID, 10, 64)
	if err != nil {
		return false, nil
	}

	var count int64
	switch scopeType {
	case "group":
		err = d.db.WithContext(ctx).Model(&models.GroupMember{}).
			Where("group_id = ? AND user_id = ?", uint(id), userID).
			Count(&count).Error
	case "event":
		err = d.db.WithContext(ctx).Model(&models.EventAttendee{}).
			Where("event_id = ? AND user_id = ?", uint(id), userID).
			Count(&count).Error
	default:
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AllowAll approves every join. Used in tests and single-tenant setups
// where the directory lives elsewhere entirely.
type AllowAll struct{}

func (AllowAll) CanJoin(ctx context.Context, scopeType, scopeID string, userID uint) (bool, error) {
	return true, nil
}
