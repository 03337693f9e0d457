package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"chatroom-service/internal/models"
)

// decrementScript decrements without going below zero and removes the key at zero.
var decrementScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n <= 1 then
	redis.call('DEL', KEYS[1])
	return 0
end
return redis.call('DECR', KEYS[1])
`)

// RedisTracker keeps counts in Redis so every worker process sees the same value.
type RedisTracker struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisTracker creates a tracker using keys "<prefix>presence:<group>".
func NewRedisTracker(client *redis.Client, keyPrefix string) *RedisTracker {
	return &RedisTracker{client: client, keyPrefix: keyPrefix}
}

func (t *RedisTracker) key(room models.RoomRef) string {
	return t.keyPrefix + "presence:" + room.GroupName()
}

func (t *RedisTracker) Increment(ctx context.Context, room models.RoomRef) (int64, error) {
	n, err := t.client.Incr(ctx, t.key(room)).Result()
	if err != nil {
		return 0, fmt.Errorf("presence incr: %w", err)
	}
	return n, nil
}

func (t *RedisTracker) Decrement(ctx context.Context, room models.RoomRef) (int64, error) {
	n, err := decrementScript.Run(ctx, t.client, []string{t.key(room)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("presence decr: %w", err)
	}
	return n, nil
}

func (t *RedisTracker) Count(ctx context.Context, room models.RoomRef) (int64, error) {
	n, err := t.client.Get(ctx, t.key(room)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("presence get: %w", err)
	}
	return n, nil
}

// Close leaves the counts in Redis; the client is owned by the caller.
func (t *RedisTracker) Close() error {
	return nil
}
