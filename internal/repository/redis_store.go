package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/quizcoach/internal/config"
	"github.com/stemsi/quizcoach/internal/model"
)

// Cache is a byte cache over Redis strings.
type Cache struct {
	rdb *redis.Client
}

// NewCache creates a new Cache.
func NewCache(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Get returns the cached value; ok is false on a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores val under key for ttl (0 keeps it forever).
func (c *Cache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// HistoryRepository stores each session's feedback turns as a Redis list.
type HistoryRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewHistoryRepository creates a new HistoryRepository. Histories expire
// ttl after their last append.
func NewHistoryRepository(rdb *redis.Client, ttl time.Duration) *HistoryRepository {
	return &HistoryRepository{rdb: rdb, ttl: ttl}
}

// Load returns the turns of a session, oldest first. An unknown session
// has an empty history.
func (r *HistoryRepository) Load(ctx context.Context, sessionID string) ([]model.Turn, error) {
	raw, err := r.rdb.LRange(ctx, config.CacheKey.SessionHistoryKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	turns := make([]model.Turn, 0, len(raw))
	for _, item := range raw {
		var t model.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Append adds turns to a session and refreshes its expiry.
func (r *HistoryRepository) Append(ctx context.Context, sessionID string, turns ...model.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	key := config.CacheKey.SessionHistoryKey(sessionID)
	values := make([]interface{}, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode turn: %w", err)
		}
		values = append(values, data)
	}

	pipe := r.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// AttemptQueue pushes attempt records for the attempt worker.
type AttemptQueue struct {
	rdb *redis.Client
}

// NewAttemptQueue creates a new AttemptQueue.
func NewAttemptQueue(rdb *redis.Client) *AttemptQueue {
	return &AttemptQueue{rdb: rdb}
}

// Enqueue appends a record to the persist queue.
func (q *AttemptQueue) Enqueue(ctx context.Context, rec model.AttemptRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, data).Err()
}

// Depth returns the number of records waiting in the persist queue.
func (q *AttemptQueue) Depth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, config.WorkerKey.PersistAttemptsQueue).Result()
}

// Attempt queue errors.
var (
	// ErrQueueEmpty is returned by Pop when no record arrived within the timeout.
	ErrQueueEmpty = errors.New("attempt queue empty")
	// ErrMalformedRecord marks a queued record that cannot be decoded.
	ErrMalformedRecord = errors.New("malformed attempt record")
)

// Pop blocks up to timeout for the next record. A record that does not
// decode is returned as raw bytes with a non-nil decode error so the caller
// can log and drop it.
func (q *AttemptQueue) Pop(ctx context.Context, timeout time.Duration) (model.AttemptRecord, []byte, error) {
	result, err := q.rdb.BLPop(ctx, timeout, config.WorkerKey.PersistAttemptsQueue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.AttemptRecord{}, nil, ErrQueueEmpty
		}
		return model.AttemptRecord{}, nil, err
	}
	if len(result) < 2 {
		return model.AttemptRecord{}, nil, ErrQueueEmpty
	}

	raw := []byte(result[1])
	var rec model.AttemptRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.AttemptRecord{}, raw, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return rec, raw, nil
}

// Requeue pushes records back onto the queue in one pipeline.
func (q *AttemptQueue) Requeue(ctx context.Context, recs []model.AttemptRecord) error {
	pipe := q.rdb.Pipeline()
	for _, rec := range recs {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		pipe.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, data)
	}
	_, err := pipe.Exec(ctx)
	return err
}
