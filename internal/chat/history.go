package chat

import (
	"context"

	"gatherhub/backend/internal/metrics"
	"gatherhub/backend/internal/repository"
	apperrors "gatherhub/backend/pkg/errors"
)

// HistoryPage is one window of a room's persisted messages. Messages are
// always chronological (oldest first) for direct rendering; page 1 is the
// most recent window so opening a chat lands on the latest messages.
type HistoryPage struct {
	Messages    []MessageView `json:"messages"`
	CurrentPage int           `json:"current_page"`
	TotalPages  int           `json:"total_pages"`
	TotalCount  int64         `json:"total_count"`
}

// History serves paginated, read-only message retrieval. Safe under
// unbounded concurrent readers; it never takes a lock.
type History struct {
	repo            repository.MessageRepository
	defaultPageSize int
}

func NewHistory(repo repository.MessageRepository, defaultPageSize int) *History {
	if defaultPageSize <= 0 {
		defaultPageSize = 50
	}
	return &History{repo: repo, defaultPageSize: defaultPageSize}
}

// Fetch returns one page of non-deleted messages for the scope. The store
// is read newest-first for cheap access to the latest window, then the
// page is reversed into chronological order.
func (h *History) Fetch(ctx context.Context, scope Scope, page, pageSize int) (*HistoryPage, error) {
	if !scope.Valid() {
		return nil, apperrors.NewValidationError("INVALID_SCOPE", "unknown chat scope")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = h.defaultPageSize
	}

	offset := (page - 1) * pageSize
	messages, total, err := h.repo.ListPage(ctx, string(scope.Type), scope.ID, offset, pageSize)
	if err != nil {
		return nil, apperrors.NewPersistenceError("failed to load history")
	}

	views := make([]MessageView, len(messages))
	for i := range messages {
		// Reverse: storage order is newest first
		views[len(messages)-1-i] = ViewOf(&messages[i])
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))

	metrics.HistoryRequests.Inc()

	return &HistoryPage{
		Messages:    views,
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalCount:  total,
	}, nil
}
