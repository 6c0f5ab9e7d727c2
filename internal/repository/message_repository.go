package repository

import (
	"context"
	"errors"
	"time"

	"gatherhub/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned for operations on unknown rows
var ErrNotFound = errors.New("not found")

// MessageRepository is the storage contract for the chat subsystem. The
// message store is the only shared mutable resource across rooms, so the
// per-message mutations (read receipts, reactions) must be atomic at the
// storage layer: insert-if-absent for receipts, replace for reactions.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	// GetByID returns soft-deleted rows too; callers decide visibility
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	// ListPage returns one page newest-first, excluding soft-deleted rows,
	// along with the total non-deleted count for the scope
	ListPage(ctx context.Context, scopeType, scopeID string, offset, limit int) ([]models.Message, int64, error)
	SaveEdit(ctx context.Context, id uint, content string, at time.Time) error
	SoftDelete(ctx context.Context, id uint, at time.Time) error
	// MarkRead records the receipt if absent. Returns whether a row was
	// inserted; a repeat call is (false, nil), not an error.
	MarkRead(ctx context.Context, messageID, userID uint, at time.Time) (bool, error)
	UpsertReaction(ctx context.Context, messageID, userID uint, emoji string, at time.Time) error
	RemoveReaction(ctx context.Context, messageID, userID uint) error
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *GormMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Preload("Reads").
		Preload("Reactions").
		First(&message, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &message, nil
}

func (r *GormMessageRepository) ListPage(ctx context.Context, scopeType, scopeID string, offset, limit int) ([]models.Message, int64, error) {
	scoped := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("scope_type = ? AND scope_id = ? AND deleted = ?", scopeType, scopeID, false)

	var total int64
	if err := scoped.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("scope_type = ? AND scope_id = ? AND deleted = ?", scopeType, scopeID, false).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Preload("Reads").
		Preload("Reactions").
		Find(&messages).Error
	return messages, total, err
}

func (r *GormMessageRepository) SaveEdit(ctx context.Context, id uint, content string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]any{
			"content":   content,
			"edited":    true,
			"edited_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormMessageRepository) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]any{
			"deleted":    true,
			"deleted_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormMessageRepository) MarkRead(ctx context.Context, messageID, userID uint, at time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND deleted = ?", messageID, false).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, ErrNotFound
	}

	// Insert-if-absent: the composite key conflict makes a racing second
	// receipt a silent no-op instead of a lost update
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.MessageRead{MessageID: messageID, UserID: userID, ReadAt: at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *GormMessageRepository) UpsertReaction(ctx context.Context, messageID, userID uint, emoji string, at time.Time) error {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND deleted = ?", messageID, false).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}

	// One reaction per user per message: adding again replaces the emoji
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"emoji", "reacted_at"}),
		}).
		Create(&models.MessageReaction{MessageID: messageID, UserID: userID, Emoji: emoji, ReactedAt: at}).Error
}

func (r *GormMessageRepository) RemoveReaction(ctx context.Context, messageID, userID uint) error {
	return r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Delete(&models.MessageReaction{}).Error
}
