package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ent0n29/talkback/internal/chat"
)

const redisKeyPrefix = "talkback:history:"

// RedisStore keeps each session's history as a Redis list of JSON records.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis at %s: %w", opts.Addr, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(sessionID string) string {
	return redisKeyPrefix + sessionID
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, msgs ...chat.Message) error {
	if err := validate(msgs); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	values := make([]any, 0, len(msgs))
	for _, m := range msgs {
		raw, err := json.Marshal(TurnRecord{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("could not marshal turn: %w", err)
		}
		values = append(values, raw)
	}
	// A single RPUSH is atomic, so a turn pair never interleaves with another
	// append to the same key.
	if err := s.rdb.RPush(ctx, redisKey(sessionID), values...).Err(); err != nil {
		return fmt.Errorf("save turns: %w", err)
	}
	return nil
}

func (s *RedisStore) History(ctx context.Context, sessionID string, limit int) (chat.History, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := s.rdb.LRange(ctx, redisKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	records := make([]TurnRecord, 0, len(raw))
	for i, item := range raw {
		var r TurnRecord
		if err := json.Unmarshal([]byte(item), &r); err != nil {
			return nil, fmt.Errorf("decode history item %d: %w", i, err)
		}
		records = append(records, r)
	}
	return toHistory(records), nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, redisKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
