package cancel

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// Redis is a Registry shared by every process pointed at the same server.
// Flags expire after ttl so an abandoned flag cannot outlive its run.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed registry. Keys are "<prefix>:<clientID>".
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "enrich:cancel"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(clientID string) string {
	return r.prefix + ":" + clientID
}

// Set implements Registry. Setting false removes the flag.
func (r *Redis) Set(ctx context.Context, clientID string, cancelled bool) error {
	if !cancelled {
		return r.Clear(ctx, clientID)
	}
	if err := r.client.Set(ctx, r.key(clientID), "1", r.ttl).Err(); err != nil {
		return eris.Wrapf(err, "cancel: set flag for %s", clientID)
	}
	return nil
}

// IsCancelled implements Registry.
func (r *Redis) IsCancelled(ctx context.Context, clientID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(clientID)).Result()
	if err != nil {
		return false, eris.Wrapf(err, "cancel: read flag for %s", clientID)
	}
	return n > 0, nil
}

// Clear implements Registry.
func (r *Redis) Clear(ctx context.Context, clientID string) error {
	if err := r.client.Del(ctx, r.key(clientID)).Err(); err != nil {
		return eris.Wrapf(err, "cancel: clear flag for %s", clientID)
	}
	return nil
}
