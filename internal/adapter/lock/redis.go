package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "ondesk:conversation:lock:"
	defaultTTL = 2 * time.Minute
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker backed by Redis SET NX PX.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisLocker creates a locker on an existing client. Locks expire after
// ttl so a crashed holder cannot wedge a conversation.
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

// Connect parses url, pings the server and returns a locker on it.
func Connect(ctx context.Context, url string, ttl time.Duration, logger *slog.Logger) (*RedisLocker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisLocker(client, ttl, logger), nil
}

// Acquire implements Locker.
func (r *RedisLocker) Acquire(ctx context.Context, conversationID string) (Release, error) {
	key := keyPrefix + conversationID
	token := uuid.New().String()

	ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire conversation lock: %w", err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	r.logger.Debug("conversation lock acquired", "conversation_id", conversationID)

	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, r.client, []string{key}, token).Int()
		if err != nil {
			return fmt.Errorf("release conversation lock: %w", err)
		}
		if n == 0 {
			r.logger.Warn("conversation lock expired before release", "conversation_id", conversationID)
		}
		return nil
	}, nil
}

// Close closes the underlying client.
func (r *RedisLocker) Close() error {
	return r.client.Close()
}
