package groups

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"warden/internal/constants"
	"warden/internal/logger"
	"warden/internal/moderation"
	"warden/pkg/metrics"
)

// SnapshotCache serves group config snapshots to the moderation engine
// with a Redis read-through in front of Postgres. A cache outage never
// blocks moderation; reads fall through to the repository.
type SnapshotCache struct {
	repo   Repository
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewSnapshotCache(repo Repository, client *redis.Client, ttl time.Duration, log logger.Logger) *SnapshotCache {
	if ttl <= 0 {
		ttl = time.Duration(constants.DefaultTTLSeconds) * time.Second
	}
	return &SnapshotCache{
		repo:   repo,
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

// Snapshot implements moderation.ConfigProvider.
func (c *SnapshotCache) Snapshot(ctx context.Context, groupID int64) (*moderation.GroupConfig, error) {
	key := cacheKey(groupID)

	if c.client != nil {
		data, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			var cfg moderation.GroupConfig
			if jsonErr := json.Unmarshal(data, &cfg); jsonErr == nil {
				metrics.ConfigSnapshotsTotal.WithLabelValues(constants.SourceTypeCache).Inc()
				return &cfg, nil
			}
			// A corrupt entry falls through to the database and gets
			// rewritten below.
			c.logger.WarnwCtx(ctx, "Discarding corrupt cached group config",
				"group_id", groupID,
			)
		} else if err != redis.Nil {
			c.logger.WarnwCtx(ctx, "Group config cache read failed",
				"group_id", groupID,
				"error", err,
			)
		}
	}

	cfg, err := c.repo.GetConfig(ctx, groupID)
	if err != nil {
		return nil, err
	}
	metrics.ConfigSnapshotsTotal.WithLabelValues(constants.SourceTypeDatabase).Inc()

	if c.client != nil {
		if data, err := json.Marshal(cfg); err == nil {
			if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
				c.logger.WarnwCtx(ctx, "Group config cache write failed",
					"group_id", groupID,
					"error", err,
				)
			}
		}
	}

	return cfg, nil
}

// Invalidate drops the cached snapshot after a config change.
func (c *SnapshotCache) Invalidate(ctx context.Context, groupID int64) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKey(groupID)).Err(); err != nil {
		c.logger.WarnwCtx(ctx, "Group config cache invalidation failed",
			"group_id", groupID,
			"error", err,
		)
	}
}

func cacheKey(groupID int64) string {
	return constants.CacheKeyPrefixGroupConfig + strconv.FormatInt(groupID, 10)
}
