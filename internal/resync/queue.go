package resync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// PendingImport is one queued item written by an out-of-process surface
// (e.g. a share extension) while the service was not reachable
type PendingImport struct {
	URL               string `json:"url"`
	UserID            string `json:"user_id"`
	CollectionID      string `json:"collection_id,omitempty"`
	NewCollectionName string `json:"new_collection_name,omitempty"`
}

// Queue is the externally writable pending-import list
type Queue interface {
	// Items returns the decoded entries and the raw count read, oldest
	// first. Malformed entries are skipped but still counted so Trim
	// clears them.
	Items(ctx context.Context) ([]PendingImport, int, error)
	// Trim drops the first n raw entries
	Trim(ctx context.Context, n int) error
}

// RedisQueue reads the pending-import list from Redis
type RedisQueue struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

// NewRedisQueue initializes a Redis-backed pending-import queue
func NewRedisQueue(addr, password string, db int, key string, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		key:    key,
		logger: logger,
	}
}

// Ping verifies the Redis connection
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Items reads all queued entries without removing them
func (q *RedisQueue) Items(ctx context.Context) ([]PendingImport, int, error) {
	vals, err := q.client.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read pending imports: %w", err)
	}

	items := make([]PendingImport, 0, len(vals))
	for _, val := range vals {
		var item PendingImport
		if err := json.Unmarshal([]byte(val), &item); err != nil {
			q.logger.Warn("Skipping malformed pending import entry",
				slog.Any("error", err),
			)
			continue
		}
		items = append(items, item)
	}

	return items, len(vals), nil
}

// Trim drops the first n raw entries from the list
func (q *RedisQueue) Trim(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}

	if err := q.client.LTrim(ctx, q.key, int64(n), -1).Err(); err != nil {
		return fmt.Errorf("failed to trim pending imports: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
