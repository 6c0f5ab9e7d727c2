package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"gatherhub/backend/internal/models"
)

// MemoryMessageRepository is an in-memory MessageRepository with the same
// per-message atomicity guarantees as the database-backed one. It backs
// the chat core in tests and local development without a database.
type MemoryMessageRepository struct {
	mu     sync.RWMutex
	nextID uint
	rows   map[uint]*models.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{
		nextID: 1,
		rows:   make(map[uint]*models.Message),
	}
}

func (r *MemoryMessageRepository) Create(ctx context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message.ID = r.nextID
	r.nextID++
	for i := range message.Reads {
		message.Reads[i].MessageID = message.ID
	}

	stored := *message
	stored.Reads = append([]models.MessageRead(nil), message.Reads...)
	stored.Reactions = append([]models.MessageReaction(nil), message.Reactions...)
	r.rows[message.ID] = &stored
	return nil
}

func (r *MemoryMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyMessage(row), nil
}

func (r *MemoryMessageRepository) ListPage(ctx context.Context, scopeType, scopeID string, offset, limit int) ([]models.Message, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var scoped []*models.Message
	for _, row := range r.rows {
		if row.ScopeType == scopeType && row.ScopeID == scopeID && !row.Deleted {
			scoped = append(scoped, row)
		}
	}

	// Newest first, matching the database ordering
	sort.Slice(scoped, func(i, j int) bool {
		if scoped[i].CreatedAt.Equal(scoped[j].CreatedAt) {
			return scoped[i].ID > scoped[j].ID
		}
		return scoped[i].CreatedAt.After(scoped[j].CreatedAt)
	})

	total := int64(len(scoped))
	if offset >= len(scoped) {
		return []models.Message{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(scoped) {
		end = len(scoped)
	}

	page := make([]models.Message, 0, end-offset)
	for _, row := range scoped[offset:end] {
		page = append(page, *copyMessage(row))
	}
	return page, total, nil
}

func (r *MemoryMessageRepository) SaveEdit(ctx context.Context, id uint, content string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || row.Deleted {
		return ErrNotFound
	}
	row.Content = content
	row.Edited = true
	edited := at
	row.EditedAt = &edited
	return nil
}

func (r *MemoryMessageRepository) SoftDelete(ctx context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || row.Deleted {
		return ErrNotFound
	}
	row.Deleted = true
	deleted := at
	row.DeletedAt = &deleted
	return nil
}

func (r *MemoryMessageRepository) MarkRead(ctx context.Context, messageID, userID uint, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[messageID]
	if !ok || row.Deleted {
		return false, ErrNotFound
	}
	for _, read := range row.Reads {
		if read.UserID == userID {
			return false, nil
		}
	}
	row.Reads = append(row.Reads, models.MessageRead{MessageID: messageID, UserID: userID, ReadAt: at})
	return true, nil
}

func (r *MemoryMessageRepository) UpsertReaction(ctx context.Context, messageID, userID uint, emoji string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[messageID]
	if !ok || row.Deleted {
		return ErrNotFound
	}
	for i := range row.Reactions {
		if row.Reactions[i].UserID == userID {
			row.Reactions[i].Emoji = emoji
			row.Reactions[i].ReactedAt = at
			return nil
		}
	}
	row.Reactions = append(row.Reactions, models.MessageReaction{MessageID: messageID, UserID: userID, Emoji: emoji, ReactedAt: at})
	return nil
}

func (r *MemoryMessageRepository) RemoveReaction(ctx context.Context, messageID, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[messageID]
	if !ok {
		return nil
	}
	for i := range row.Reactions {
		if row.Reactions[i].UserID == userID {
			row.Reactions = append(row.Reactions[:i], row.Reactions[i+1:]...)
			return nil
		}
	}
	return nil
}

func copyMessage(m *models.Message) *models.Message {
	out := *m
	out.Reads = append([]models.MessageRead(nil), m.Reads...)
	out.Reactions = append([]models.MessageReaction(nil), m.Reactions...)
	return &out
}
