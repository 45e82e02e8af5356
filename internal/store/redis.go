package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to redis with short timeouts.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	})
	return &Redis{Client: client}
}

// Healthy verifies redis connectivity.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}

const statsTTL = 24 * time.Hour

func statsKey(sessionID string) string {
	return "attendance:stats:" + sessionID
}

// BumpSessionStat increments a per-session counter field (a claim status).
// Counters expire after a day; the ledger remains the source of truth.
func (r *Redis) BumpSessionStat(ctx context.Context, sessionID, field string) error {
	key := statsKey(sessionID)
	if err := r.Client.HIncrBy(ctx, key, field, 1).Err(); err != nil {
		return err
	}
	return r.Client.Expire(ctx, key, statsTTL).Err()
}

// SessionStats returns the counter fields for a session; empty map when none.
func (r *Redis) SessionStats(ctx context.Context, sessionID string) (map[string]string, error) {
	return r.Client.HGetAll(ctx, statsKey(sessionID)).Result()
}
