package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisperlink/whisperlink-backend/internal/config"
)

// statsTTL is how long a cached stats snapshot lives. Refreshed on
// access while the user stays active.
const statsTTL = time.Hour

// StatsSnapshot is the cached view of a user's dashboard counters.
type StatsSnapshot struct {
	IncomingCount int64 `json:"incoming_count"`
	OutgoingCount int64 `json:"outgoing_count"`
	MatchCount    int64 `json:"match_count"`
}

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

// KeyForStats generates the Redis key for a user's counters.
func (c *RedisCache) KeyForStats(uid string) string {
	return fmt.Sprintf("stats:%s", uid)
}

// GetStats returns the cached snapshot, or nil on a miss. A hit
// refreshes the TTL.
func (c *RedisCache) GetStats(ctx context.Context, uid string) (*StatsSnapshot, error) {
	key := c.KeyForStats(uid)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap StatsSnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		// stale or corrupt entry, treat as a miss
		_ = c.Client.Del(ctx, key).Err()
		return nil, nil
	}

	_ = c.Client.Expire(ctx, key, statsTTL).Err()
	return &snap, nil
}

// SetStats stores a fresh snapshot with the standard TTL.
func (c *RedisCache) SetStats(ctx context.Context, uid string, snap StatsSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, c.KeyForStats(uid), b, statsTTL).Err()
}

// InvalidateStats drops the cached snapshots for the given users. Called
// after any mutation that moves their counters.
func (c *RedisCache) InvalidateStats(ctx context.Context, uids ...string) error {
	if len(uids) == 0 {
		return nil
	}
	keys := make([]string, len(uids))
	for i, uid := range uids {
		keys[i] = c.KeyForStats(uid)
	}
	return c.Client.Del(ctx, keys...).Err()
}
