package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentrun/item"
)

// Compile-time interface check.
var _ Store = (*RedisStore)(nil)

// RedisStoreOptions configure a RedisStore.
type RedisStoreOptions struct {
	// KeyPrefix is prepended to every session key. Defaults to
	// "agentrun:session".
	KeyPrefix string
	// TTL refreshes the expiration of a session key on every append. Zero
	// means no expiration.
	TTL time.Duration
}

// RedisStore keeps each session history in a Redis list, one serialized
// item per entry. It suits multi process deployments that share
// conversations.
type RedisStore struct {
	client     redis.UniversalClient
	ownsClient bool
	opts       RedisStoreOptions
}

// NewRedisStore wraps an existing Redis client. The caller remains
// responsible for closing the client.
func NewRedisStore(client redis.UniversalClient, optFns ...func(o *RedisStoreOptions)) *RedisStore {
	opts := RedisStoreOptions{
		KeyPrefix: "agentrun:session",
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &RedisStore{client: client, opts: opts}
}

// NewRedisStoreFromURL creates a dedicated client from a Redis URL, e.g.
// redis://localhost:6379/0. Close releases the client.
func NewRedisStoreFromURL(url string, optFns ...func(o *RedisStoreOptions)) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	s := NewRedisStore(redis.NewClient(redisOpts), optFns...)
	s.ownsClient = true

	return s, nil
}

func (s *RedisStore) key(sessionID string) string {
	return s.opts.KeyPrefix + ":" + sessionID
}

// Items implements the Store interface.
func (s *RedisStore) Items(ctx context.Context, sessionID string) ([]item.Item, error) {
	raw, err := s.client.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}

	items := make([]item.Item, 0, len(raw))

	for _, entry := range raw {
		it, err := item.Unmarshal([]byte(entry))
		if err != nil {
			return nil, fmt.Errorf("decode stored item: %w", err)
		}

		items = append(items, it)
	}

	return items, nil
}

// Append implements the Store interface.
func (s *RedisStore) Append(ctx context.Context, sessionID string, items []item.Item) error {
	if len(items) == 0 {
		return nil
	}

	values := make([]any, 0, len(items))

	for _, it := range items {
		b, err := item.Marshal(it)
		if err != nil {
			return fmt.Errorf("encode item: %w", err)
		}

		values = append(values, b)
	}

	key := s.key(sessionID)

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, values...)

	if s.opts.TTL > 0 {
		pipe.Expire(ctx, key, s.opts.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis rpush: %w", err)
	}

	return nil
}

// Clear implements the Store interface.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// Close releases the underlying client if the store created it.
func (s *RedisStore) Close() error {
	if s.ownsClient {
		return s.client.Close()
	}

	return nil
}
