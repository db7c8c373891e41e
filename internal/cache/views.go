package cache

import (
	"context"
	"time"

	"pointsbot/internal/composite"
)

const viewKeyPrefix = "user:view:"

// UserViews caches merged user projections keyed by external ID. A nil
// receiver disables caching, so callers need no Redis in tests.
type UserViews struct {
	redis *Redis
	ttl   time.Duration
}

// NewUserViews builds the projection cache.
func NewUserViews(r *Redis, ttl time.Duration) *UserViews {
	return &UserViews{redis: r, ttl: ttl}
}

// Get returns the cached projection, if present.
func (c *UserViews) Get(ctx context.Context, externalID string) (*composite.UserView, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	var view composite.UserView
	ok, err := c.redis.GetJSON(ctx, viewKeyPrefix+externalID, &view)
	if err != nil {
		c.redis.logger.Warn("view cache read failed", "external_id", externalID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return &view, true
}

// Put stores a projection. Failures are logged, never surfaced.
func (c *UserViews) Put(ctx context.Context, externalID string, view *composite.UserView) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.SetJSON(ctx, viewKeyPrefix+externalID, view, c.ttl); err != nil {
		c.redis.logger.Warn("view cache write failed", "external_id", externalID, "error", err)
	}
}

// Invalidate drops a projection after any balance-affecting write.
func (c *UserViews) Invalidate(ctx context.Context, externalID string) {
	if c == nil || c.redis == nil {
		return
	}
	if err := c.redis.Delete(ctx, viewKeyPrefix+externalID); err != nil {
		c.redis.logger.Warn("view cache invalidation failed", "external_id", externalID, "error", err)
	}
}
