package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/socialgraph/internal/logging"
)

type cacheKind string

const (
	cacheFriends                cacheKind = "f"
	cacheFollowers              cacheKind = "ifo"
	cacheFollowing              cacheKind = "ifl"
	cacheRequests               cacheKind = "fr"
	cacheSentRequests           cacheKind = "sfr"
	cacheUnreadRequests         cacheKind = "fru"
	cacheUnreadRequestCount     cacheKind = "fruc"
	cacheReadRequests           cacheKind = "frr"
	cacheRejectedRequests       cacheKind = "frj"
	cacheUnrejectedRequests     cacheKind = "frur"
	cacheUnrejectedRequestCount cacheKind = "frurc"
	cacheBlocked                cacheKind = "bl"
)

// Every view derived from requests addressed to a user goes stale together.
var receivedRequestKinds = []cacheKind{
	cacheRequests,
	cacheUnreadRequests,
	cacheUnreadRequestCount,
	cacheReadRequests,
	cacheRejectedRequests,
	cacheUnrejectedRequests,
	cacheUnrejectedRequestCount,
}

var allCacheKinds = append([]cacheKind{
	cacheFriends,
	cacheFollowers,
	cacheFollowing,
	cacheSentRequests,
	cacheBlocked,
}, receivedRequestKinds...)

// RelationCache is a read-through per-user cache of relationship views.
// Redis failures are logged and treated as misses. A nil *RelationCache is
// valid and caches nothing.
type RelationCache struct {
	client RedisClient
	ttl    time.Duration
	prefix string
	logger *logging.Logger
}

func NewRelationCache(client RedisClient, ttl time.Duration, prefix string, logger *logging.Logger) *RelationCache {
	if logger == nil {
		logger = logging.Default
	}
	return &RelationCache{
		client: client,
		ttl:    ttl,
		prefix: prefix,
		logger: logger.WithField("component", "relation_cache"),
	}
}

func (c *RelationCache) key(kind cacheKind, userID uuid.UUID) string {
	return c.prefix + string(kind) + "-" + userID.String()
}

func (c *RelationCache) get(ctx context.Context, kind cacheKind, userID uuid.UUID, dest any) bool {
	if c == nil {
		return false
	}
	raw, err := c.client.Get(ctx, c.key(kind, userID))
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		c.logger.Warn("Cache read failed", logging.Fields{"kind": string(kind), "error": err.Error()})
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.logger.Warn("Cache entry corrupt", logging.Fields{"kind": string(kind), "error": err.Error()})
		return false
	}
	return true
}

func (c *RelationCache) set(ctx context.Context, kind cacheKind, userID uuid.UUID, value any) {
	if c == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Cache encode failed", logging.Fields{"kind": string(kind), "error": err.Error()})
		return
	}
	if err := c.client.Set(ctx, c.key(kind, userID), string(data), c.ttl); err != nil {
		c.logger.Warn("Cache write failed", logging.Fields{"kind": string(kind), "error": err.Error()})
	}
}

func (c *RelationCache) bust(ctx context.Context, userID uuid.UUID, kinds ...cacheKind) {
	if c == nil || len(kinds) == 0 {
		return
	}
	keys := make([]string, 0, len(kinds))
	for _, k := range kinds {
		keys = append(keys, c.key(k, userID))
	}
	if err := c.client.Del(ctx, keys...); err != nil {
		c.logger.Warn("Cache invalidation failed", logging.Fields{
			"user_id": userID.String(),
			"error":   err.Error(),
		})
	}
}

// InvalidateUser drops every cached view for userID.
func (c *RelationCache) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	c.bust(ctx, userID, allCacheKinds...)
}

// cached returns the cached view for (kind, userID) or loads and stores it.
func cached[T any](ctx context.Context, c *RelationCache, kind cacheKind, userID uuid.UUID, load func() (T, error)) (T, error) {
	var v T
	if c.get(ctx, kind, userID, &v) {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.set(ctx, kind, userID, v)
	return v, nil
}
