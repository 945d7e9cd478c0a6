package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/telhawk-systems/telhawk-relay/common/logging"
	"github.com/telhawk-systems/telhawk-relay/relay/internal/metrics"
)

const cacheKeyPrefix = "relay:directory:"

// NewRedisClient parses redisURL and verifies the server answers.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// CachedDirectory keeps successful lookups from next in Redis for ttl.
// Redis errors are logged and the lookup goes to next.
type CachedDirectory struct {
	next   Directory
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewCachedDirectory(next Directory, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedDirectory {
	if logger == nil {
		logger = logging.Discard()
	}
	return &CachedDirectory{next: next, client: client, ttl: ttl, logger: logger}
}

func (c *CachedDirectory) ChannelName(ctx context.Context, channelID string) (string, error) {
	key := cacheKeyPrefix + "channel:" + channelID

	name, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		metrics.LookupsTotal.WithLabelValues("channel", "cache_hit").Inc()
		return name, nil
	case err != redis.Nil:
		c.logger.DebugContext(ctx, "directory cache read failed", logging.Error(err))
	}

	name, err = c.next.ChannelName(ctx, channelID)
	if err != nil {
		return "", err
	}
	if err := c.client.Set(ctx, key, name, c.ttl).Err(); err != nil {
		c.logger.DebugContext(ctx, "directory cache write failed", logging.Error(err))
	}
	return name, nil
}

func (c *CachedDirectory) LookupUser(ctx context.Context, userID string) (User, error) {
	key := cacheKeyPrefix + "user:" + userID

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var u User
		if jsonErr := json.Unmarshal(raw, &u); jsonErr == nil {
			metrics.LookupsTotal.WithLabelValues("user", "cache_hit").Inc()
			return u, nil
		}
	case err != redis.Nil:
		c.logger.DebugContext(ctx, "directory cache read failed", logging.Error(err))
	}

	u, err := c.next.LookupUser(ctx, userID)
	if err != nil {
		return User{}, err
	}
	if data, err := json.Marshal(u); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.DebugContext(ctx, "directory cache write failed", logging.Error(err))
		}
	}
	return u, nil
}
