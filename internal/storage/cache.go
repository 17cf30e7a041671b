package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akhbar-mr/akhbar-harvester/internal/domain"
	"github.com/akhbar-mr/akhbar-harvester/internal/logger"
)

const defaultCacheTTL = 5 * time.Minute

// listCache is the subset of the Redis client the cache uses.
type listCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

func newRedisCache(addr string) listCache {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// CachedStore serves Query from Redis and invalidates a language's cached lists when an
// article in that language is upserted. Cache failures fall through to the inner store.
type CachedStore struct {
	inner Store
	cache listCache
	ttl   time.Duration
	log   logger.Logger
}

// NewCachedStore wraps inner. A failed ping is logged, not fatal.
func NewCachedStore(ctx context.Context, inner Store, cache listCache, ttl time.Duration, log logger.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	log = logger.Ensure(log)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis ping failed", zap.Error(err))
	}
	return &CachedStore{inner: inner, cache: cache, ttl: ttl, log: log}
}

func listKey(lang domain.Language, limit int) string {
	return fmt.Sprintf("news:list:%s:%d", lang, limit)
}

func indexKey(lang domain.Language) string {
	return fmt.Sprintf("news:keys:%s", lang)
}

// genKey counts upserts per language so a read-through can tell it raced an invalidation.
func genKey(lang domain.Language) string {
	return fmt.Sprintf("news:gen:%s", lang)
}

func (s *CachedStore) generation(ctx context.Context, lang domain.Language) string {
	v, err := s.cache.Get(ctx, genKey(lang)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.log.Debug("cache generation read failed", zap.Error(err))
	}
	return v
}

// Upsert writes through and drops the cached lists of the article's language.
func (s *CachedStore) Upsert(ctx context.Context, a domain.Article) (domain.Article, error) {
	stored, err := s.inner.Upsert(ctx, a)
	if err != nil {
		return stored, err
	}

	if err := s.cache.Incr(ctx, genKey(stored.Language)).Err(); err != nil {
		s.log.Debug("cache generation bump failed", zap.Error(err))
	}

	keys, err := s.cache.SMembers(ctx, indexKey(stored.Language)).Result()
	if err != nil {
		s.log.Debug("cache index read failed", zap.Error(err))
		return stored, nil
	}
	if len(keys) > 0 {
		if err := s.cache.Del(ctx, append(keys, indexKey(stored.Language))...).Err(); err != nil {
			s.log.Debug("cache invalidation failed", zap.Error(err))
		}
	}
	return stored, nil
}

// Query returns the cached list when present, else reads through and caches.
func (s *CachedStore) Query(ctx context.Context, lang domain.Language, limit int) ([]domain.Article, error) {
	limit = normalizeLimit(limit)
	key := listKey(lang, limit)

	if bs, err := s.cache.Get(ctx, key).Bytes(); err == nil {
		var cached []domain.Article
		if err := json.Unmarshal(bs, &cached); err == nil {
			return cached, nil
		}
	}

	gen := s.generation(ctx, lang)
	list, err := s.inner.Query(ctx, lang, limit)
	if err != nil {
		return nil, err
	}

	bs, err := json.Marshal(list)
	if err != nil {
		return list, nil
	}
	// Index before writing so an upsert can always find the key it must drop.
	if err := s.cache.SAdd(ctx, indexKey(lang), key).Err(); err != nil {
		s.log.Debug("cache index write failed", zap.String("key", key), zap.Error(err))
		return list, nil
	}
	if err := s.cache.Set(ctx, key, bs, s.ttl).Err(); err != nil {
		s.log.Debug("cache write failed", zap.Error(err))
		return list, nil
	}
	if s.generation(ctx, lang) != gen {
		if err := s.cache.Del(ctx, key).Err(); err != nil {
			s.log.Debug("stale cache drop failed", zap.String("key", key), zap.Error(err))
		}
	}
	return list, nil
}

// Close closes the cache client and the inner store.
func (s *CachedStore) Close() error {
	cacheErr := s.cache.Close()
	if err := s.inner.Close(); err != nil {
		return err
	}
	return cacheErr
}
