package weddings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lovenda/veil/pkg/authz"
	"github.com/lovenda/veil/pkg/observability"
)

// permissionSnapshot is what gets cached per (wedding, principal) pair.
// Snapshots written by older builds may miss capability keys; reads heal
// them against the canonical matrix before returning.
type permissionSnapshot struct {
	Role        authz.Role          `json:"role"`
	Permissions authz.PermissionSet `json:"permissions"`
}

// PermissionCache caches permission snapshots in a process-local expirable
// LRU with an optional Redis layer behind it. The cache is an optimization
// only; membership mutations always go to the database and invalidate here.
type PermissionCache struct {
	local   *lru.LRU[string, permissionSnapshot]
	redis   *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewPermissionCache creates a cache. redisClient and metrics may be nil.
func NewPermissionCache(size int, ttl time.Duration, redisClient *redis.Client, metrics *observability.Metrics, logger *observability.Logger) *PermissionCache {
	if size <= 0 {
		size = 4096
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PermissionCache{
		local:   lru.NewLRU[string, permissionSnapshot](size, nil, ttl),
		redis:   redisClient,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

func cacheKey(weddingID, principalID string) string {
	return "veil:perms:" + weddingID + ":" + principalID
}

// Get returns the healed permission set and role for a principal on a
// wedding, or false on a miss.
func (c *PermissionCache) Get(ctx context.Context, weddingID, principalID string) (authz.Role, authz.PermissionSet, bool) {
	key := cacheKey(weddingID, principalID)

	if snap, ok := c.local.Get(key); ok {
		c.recordHit("local")
		return snap.Role, c.heal(snap), true
	}
	c.recordMiss("local")

	if c.redis == nil {
		return "", nil, false
	}

	data, err := c.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.recordMiss("redis")
		return "", nil, false
	}
	if err != nil {
		// Redis trouble means a miss, never a failure
		if c.logger != nil {
			c.logger.WithError(err).Warn("Permission cache read failed")
		}
		return "", nil, false
	}

	var snap permissionSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.recordMiss("redis")
		return "", nil, false
	}
	c.recordHit("redis")

	c.local.Add(key, snap)
	return snap.Role, c.heal(snap), true
}

// Put stores the permission snapshot for a principal's role on a wedding.
func (c *PermissionCache) Put(ctx context.Context, weddingID, principalID string, role authz.Role) {
	snap := permissionSnapshot{
		Role:        role,
		Permissions: authz.PermissionsForRole(role),
	}
	key := cacheKey(weddingID, principalID)
	c.local.Add(key, snap)

	if c.redis == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil && c.logger != nil {
		c.logger.WithError(err).Warn("Permission cache write failed")
	}
}

// InvalidateWedding drops every cached snapshot for a wedding. Local
// entries are purged by key scan; Redis entries by pattern delete.
func (c *PermissionCache) InvalidateWedding(ctx context.Context, weddingID string) {
	prefix := "veil:perms:" + weddingID + ":"
	for _, key := range c.local.Keys() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			c.local.Remove(key)
		}
	}

	if c.redis == nil {
		return
	}
	iter := c.redis.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		c.redis.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil && c.logger != nil {
		c.logger.WithError(err).Warn("Permission cache invalidation scan failed")
	}
}

// heal rebuilds a complete permission set from the stored one, filling
// missing capability keys from the canonical matrix for the stored role and
// dropping unknown keys.
func (c *PermissionCache) heal(snap permissionSnapshot) authz.PermissionSet {
	return authz.MergePermissions(authz.PermissionsForRole(snap.Role), snap.Permissions)
}

func (c *PermissionCache) recordHit(layer string) {
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.WithLabelValues(layer).Inc()
	}
}

func (c *PermissionCache) recordMiss(layer string) {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.WithLabelValues(layer).Inc()
	}
}
