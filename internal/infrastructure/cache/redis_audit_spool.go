package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mise/backend/internal/domain/audit"
	"github.com/redis/go-redis/v9"
)

// DefaultSpoolKey is the redis list holding spooled audit entries
const DefaultSpoolKey = "mise:audit:spool"

// RedisAuditSpool implements audit.Spool on a redis list.
// Entries are pushed on the left and popped from the right, so the oldest
// entry is drained first. The list is shared by every server instance.
type RedisAuditSpool struct {
	client *redis.Client
	key    string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisAuditSpool connects to redis and creates a spool on key
func NewRedisAuditSpool(cfg RedisConfig, key string) (*RedisAuditSpool, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisAuditSpoolWithClient(client, key), nil
}

// NewRedisAuditSpoolWithClient creates a spool with an existing Redis client
func NewRedisAuditSpoolWithClient(client *redis.Client, key string) *RedisAuditSpool {
	if key == "" {
		key = DefaultSpoolKey
	}
	return &RedisAuditSpool{client: client, key: key}
}

// Push appends an entry
func (s *RedisAuditSpool) Push(ctx context.Context, entry audit.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry: %w", err)
	}
	if err := s.client.LPush(ctx, s.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to spool audit entry: %w", err)
	}
	return nil
}

// Pop removes the oldest entry
func (s *RedisAuditSpool) Pop(ctx context.Context) (audit.Entry, bool, error) {
	payload, err := s.client.RPop(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return audit.Entry{}, false, nil
	}
	if err != nil {
		return audit.Entry{}, false, fmt.Errorf("failed to pop audit entry: %w", err)
	}

	var entry audit.Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return audit.Entry{}, false, fmt.Errorf("failed to decode spooled audit entry: %w", err)
	}
	return entry, true, nil
}

// Len returns the number of spooled entries
func (s *RedisAuditSpool) Len(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read audit spool length: %w", err)
	}
	return n, nil
}

// Close closes the Redis client
func (s *RedisAuditSpool) Close() error {
	return s.client.Close()
}

// Ensure RedisAuditSpool implements audit.Spool
var _ audit.Spool = (*RedisAuditSpool)(nil)
