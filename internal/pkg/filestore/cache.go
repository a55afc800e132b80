package filestore

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/tiberius19/canvas-core/app/models"
	"github.com/tiberius19/canvas-core/internal/pkg/cache"
)

// Cache is the best-effort attachment list cache. Implementations must never
// fail a request: a cache outage degrades reads to direct queries and writes
// to a logged warning.
type Cache interface {
	Get(key CacheKey) ([]models.FileAttachment, bool)
	Set(key CacheKey, attachments []models.FileAttachment)
	InvalidateEntity(systemModuleID, entityID uint)
}

type redisCache struct {
	ttl time.Duration
}

// NewRedisCache returns a Cache backed by the shared redis connection.
func NewRedisCache() Cache {
	return &redisCache{ttl: CacheTTL}
}

func (c *redisCache) Get(key CacheKey) ([]models.FileAttachment, bool) {
	raw, err := cache.Get(key.String())
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("[FileStore] cache read for %s failed: %v", key, err)
		}
		return nil, false
	}

	var attachments []models.FileAttachment
	if err := json.Unmarshal([]byte(raw), &attachments); err != nil {
		log.Warnf("[FileStore] dropping undecodable cache entry %s: %v", key, err)
		return nil, false
	}
	return attachments, true
}

func (c *redisCache) Set(key CacheKey, attachments []models.FileAttachment) {
	data, err := json.Marshal(attachments)
	if err != nil {
		log.Warnf("[FileStore] cache encode for %s failed: %v", key, err)
		return
	}
	if err := cache.Set(key.String(), data, c.ttl); err != nil {
		log.Warnf("[FileStore] cache write for %s failed: %v", key, err)
	}
}

func (c *redisCache) InvalidateEntity(systemModuleID, entityID uint) {
	prefix := EntityPrefix(systemModuleID, entityID)
	if _, err := cache.DeleteByPrefix(prefix); err != nil {
		log.Warnf("[FileStore] cache invalidation for %s failed: %v", prefix, err)
	}
}
