package presence

import (
	"context"
	"fmt"
	"time"

	"gatherhub/backend/internal/repository"
	"gatherhub/backend/pkg/logger"
	"gatherhub/backend/shared/redis"
)

const lastSeenTTL = 7 * 24 * time.Hour

// Recorder keeps best-effort last-seen markers in redis and on the user
// row. Either backend may be absent; whatever is configured gets written.
type Recorder struct {
	cache *redis.Client
	users repository.UserRepository
	log   *logger.Logger
}

func NewRecorder(cache *redis.Client, users repository.UserRepository, log *logger.Logger) *Recorder {
	return &Recorder{cache: cache, users: users, log: log}
}

// RecordLastSeen writes the marker to every configured backend. The first
// failure is returned but callers treat it as advisory.
func (r *Recorder) RecordLastSeen(ctx context.Context, userID uint, at time.Time) error {
	var firstErr error

	if r.cache != nil {
		key := fmt.Sprintf("presence:last-seen:%d", userID)
		if err := r.cache.Set(ctx, key, at.UTC().Format(time.RFC3339), lastSeenTTL); err != nil {
			firstErr = err
		}
	}

	if r.users != nil {
		if err := r.users.UpdateLastSeen(ctx, userID, at); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
