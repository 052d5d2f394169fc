package service

import (
	"container/list"
	"context"
	"crypto/tls"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Sam-arojo/Protrust/internal/config"
)

// Cache defines the minimal cache operations the geolocation resolver relies
// on.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type cacheManager struct {
	redis  *redis.Client
	memory *memoryCache
	logger *zap.Logger
}

// NewCacheManager initialises a cache layer backed by Redis with an in-memory
// fallback. Redis connectivity failures are logged and automatically fall back
// to memory-only caching.
func NewCacheManager(cfg *config.Config) Cache {
	logger := zap.L()
	maxEntries := cfg.CacheMaxEntries
	if maxEntries <= 0 {
		maxEntries = 1024
	}

	mgr := &cacheManager{
		memory: newMemoryCache(maxEntries),
		logger: logger,
	}

	if cfg.RedisEnabled && cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  cfg.RedisDialTimeout,
			ReadTimeout:  cfg.RedisReadTimeout,
			WriteTimeout: cfg.RedisWriteTimeout,
		}
		if cfg.RedisUseTLS {
			opts.TLSConfig = &tls.Config{
				MinVersion: tls.VersionTLS12,
			}
		}
		client := redis.NewClient(opts)
		dialTimeout := opts.DialTimeout
		if dialTimeout <= 0 {
			dialTimeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, using in-memory cache only", zap.Error(err))
			_ = client.Close()
		} else {
			logger.Info("redis cache initialised", zap.String("addr", cfg.RedisAddr))
			mgr.redis = client
		}
	} else if cfg.RedisEnabled {
		logger.Warn("redis requested via config but REDIS_ADDR missing, using in-memory cache only")
	}

	return mgr
}

func (c *cacheManager) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, errors.New("cache key must not be empty")
	}
	if c.redis != nil {
		val, err := c.redis.Get(ctx, key).Bytes()
		if err == nil {
			return val, true, nil
		}
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed, falling back to memory", zap.Error(err))
		}
	}

	val, ok := c.memory.Get(key)
	if ok {
		return val, true, nil
	}
	return nil, false, nil
}

func (c *cacheManager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == "" {
		return errors.New("cache key must not be empty")
	}
	if ttl <= 0 {
		return nil
	}
	c.memory.Set(key, value, ttl)
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("redis set failed, keeping memory cache", zap.Error(err))
		return err
	}
	return nil
}

type memoryCache struct {
	mu         sync.Mutex
	items      map[string]*list.Element
	ll         *list.List
	maxEntries int
}

type memoryEntry struct {
	key    string
	value  []byte
	expire time.Time
}

func newMemoryCache(maxEntries int) *memoryCache {
	return &memoryCache{
		items:      make(map[string]*list.Element),
		ll:         list.New(),
		maxEntries: maxEntries,
	}
}

func (m *memoryCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 || key == "" {
		return
	}
	expire := time.Now().Add(ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.items[key]; ok {
		entry := elem.Value.(*memoryEntry)
		entry.value = append(entry.value[:0], value...)
		entry.expire = expire
		m.ll.MoveToFront(elem)
		return
	}
	entry := &memoryEntry{
		key:    key,
		value:  append([]byte(nil), value...),
		expire: expire,
	}
	elem := m.ll.PushFront(entry)
	m.items[key] = elem
	m.evictExpiredLocked()
	if m.maxEntries > 0 && m.ll.Len() > m.maxEntries {
		m.evictOldestLocked()
	}
}

func (m *memoryCache) Get(key string) ([]byte, bool) {
	if key == "" {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	elem, ok := m.items[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*memoryEntry)
	if time.Now().After(entry.expire) {
		m.removeElementLocked(elem)
		return nil, false
	}
	m.ll.MoveToFront(elem)
	return append([]byte(nil), entry.value...), true
}

func (m *memoryCache) evictExpiredLocked() {
	now := time.Now()
	for elem := m.ll.Back(); elem != nil; {
		prev := elem.Prev()
		entry := elem.Value.(*memoryEntry)
		if entry.expire.After(now) {
			break
		}
		m.removeElementLocked(elem)
		elem = prev
	}
}

func (m *memoryCache) evictOldestLocked() {
	elem := m.ll.Back()
	if elem != nil {
		m.removeElementLocked(elem)
	}
}

func (m *memoryCache) removeElementLocked(elem *list.Element) {
	delete(m.items, elem.Value.(*memoryEntry).key)
	m.ll.Remove(elem)
}
