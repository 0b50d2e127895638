package cache

import (
	"context"
	"errors"
	"time"

	"StockForecaster/internal/domain/repository"
	pkgcache "StockForecaster/pkg/cache"
	"StockForecaster/pkg/logger"
	"StockForecaster/pkg/metrics"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"

	DefaultTTL = time.Hour
)

// Store is the best-effort cache used by the use cases. Backend failures are
// logged and never surface to the caller.
type Store struct {
	backend pkgcache.Service
	name    string
	ttl     time.Duration
	log     *logger.Logger
	metrics repository.Metrics
}

type Config struct {
	RedisURL string
	Prefix   string
	TTL      time.Duration
}

// NewStore connects to Redis when RedisURL is set and reachable. Otherwise it
// falls back to an in-process map that does not expire entries.
func NewStore(cfg Config, l *logger.Logger, m repository.Metrics) *Store {
	if l == nil {
		l = logger.Nop()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	if cfg.RedisURL != "" {
		rc, err := pkgcache.NewRedisCache(pkgcache.WithRedisURL(cfg.RedisURL), pkgcache.WithRedisPrefix(cfg.Prefix))
		if err == nil {
			l.Info("cache backend ready", logger.String("backend", BackendRedis))
			return newStore(rc, BackendRedis, cfg.TTL, l, m)
		}
		l.Warn("redis unavailable, using in-memory cache without expiry", logger.Error(err))
	} else {
		l.Info("no redis configured, using in-memory cache without expiry")
	}
	return newStore(pkgcache.NewMemoryCache(), BackendMemory, cfg.TTL, l, m)
}

// NewStoreWithBackend wraps an existing backend.
func NewStoreWithBackend(backend pkgcache.Service, name string, ttl time.Duration, l *logger.Logger, m repository.Metrics) *Store {
	if l == nil {
		l = logger.Nop()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return newStore(backend, name, ttl, l, m)
}

func newStore(backend pkgcache.Service, name string, ttl time.Duration, l *logger.Logger, m repository.Metrics) *Store {
	return &Store{
		backend: backend,
		name:    name,
		ttl:     ttl,
		log:     l.With(logger.String("cache_backend", name)),
		metrics: m,
	}
}

// Get decodes the cached value into dest and reports whether it was found.
func (s *Store) Get(ctx context.Context, key string, dest interface{}) bool {
	err := s.backend.Get(ctx, key, dest)
	switch {
	case err == nil:
		s.metrics.RecordCache(s.name, "hit")
		return true
	case errors.Is(err, pkgcache.ErrCacheMiss):
		s.metrics.RecordCache(s.name, "miss")
	default:
		s.metrics.RecordCache(s.name, "error")
		s.log.Error("cache get failed", logger.String("key", key), logger.Error(err))
	}
	return false
}

// Set stores value for ttl, or the configured default when ttl is omitted.
func (s *Store) Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) {
	exp := s.ttl
	if len(ttl) > 0 && ttl[0] > 0 {
		exp = ttl[0]
	}
	if err := s.backend.Set(ctx, key, value, exp); err != nil {
		s.metrics.RecordCache(s.name, "error")
		s.log.Error("cache set failed", logger.String("key", key), logger.Error(err))
	}
}

func (s *Store) Delete(ctx context.Context, key string) {
	if err := s.backend.Delete(ctx, key); err != nil {
		s.metrics.RecordCache(s.name, "error")
		s.log.Error("cache delete failed", logger.String("key", key), logger.Error(err))
	}
}

func (s *Store) MakeKey(prefix string, parts ...string) string {
	args := make([]interface{}, len(parts))
	for i, p := range parts {
		args[i] = p
	}
	return pkgcache.MakeKey(prefix, args...)
}

func (s *Store) Backend() string { return s.name }

// DefaultTTL returns the expiry used when Set is called without one.
func (s *Store) DefaultTTL() time.Duration { return s.ttl }

func (s *Store) Close() error { return s.backend.Close() }
