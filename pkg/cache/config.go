package cache

import "time"

// RedisOption configures Redis cache.
type RedisOption func(*RedisConfig)

// RedisConfig holds Redis configuration. URL, when set, takes precedence over Addr.
type RedisConfig struct {
	URL          string
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	PingTimeout  time.Duration
	Prefix       string
}

// WithRedisURL sets a redis:// or rediss:// connection URL.
func WithRedisURL(url string) RedisOption {
	return func(c *RedisConfig) {
		c.URL = url
	}
}

// WithRedisPingTimeout bounds the reachability check at construction.
func WithRedisPingTimeout(d time.Duration) RedisOption {
	return func(c *RedisConfig) {
		c.PingTimeout = d
	}
}

// WithRedisPrefix sets key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(c *RedisConfig) {
		c.Prefix = prefix
	}
}

// MemoryOption configures Memory cache.
type MemoryOption func(*MemoryConfig)

// MemoryConfig holds memory cache configuration. MaxSize 0 means unbounded.
type MemoryConfig struct {
	MaxSize int
}

// WithMemoryMaxSize sets max entry count; the least recently used entry is evicted past it.
func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *MemoryConfig) {
		c.MaxSize = size
	}
}
