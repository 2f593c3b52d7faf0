package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type CacheBackend string

const (
	CacheBigCache CacheBackend = "bigcache"
	CacheRedis    CacheBackend = "redis"
)

type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	DBPath string `env:"DB_PATH" envDefault:"shop.db"`
	LogDir string `env:"LOG_DIR" envDefault:"logs"`

	// Auth
	JWTSecret string        `env:"JWT_SECRET,required"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// Redis is optional; an empty address disables the Redis cache, rate
	// limiting and cache invalidation fan-out.
	RedisAddr     string       `env:"REDIS_ADDR"`
	RedisPassword string       `env:"REDIS_PASSWORD"`
	RedisDB       int          `env:"REDIS_DB" envDefault:"0"`
	CacheBackend  CacheBackend `env:"CACHE_BACKEND" envDefault:"bigcache"`

	// View buffer
	ViewFlushInterval time.Duration `env:"VIEW_FLUSH_INTERVAL" envDefault:"5s"`
	ViewMaxBuffer     int           `env:"VIEW_MAX_BUFFER" envDefault:"1000"`
	ViewFlushTimeout  time.Duration `env:"VIEW_FLUSH_TIMEOUT" envDefault:"10s"`
	ViewRetention     time.Duration `env:"VIEW_RETENTION" envDefault:"0"`

	RateLimitPerMinute int64         `env:"RATE_LIMIT_PER_MINUTE" envDefault:"100"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	SentryDSN string `env:"SENTRY_DSN"`
}

// Load parses the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must not be empty")
	}
	if cfg.CacheBackend != CacheBigCache && cfg.CacheBackend != CacheRedis {
		return nil, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}
	if cfg.CacheBackend == CacheRedis && cfg.RedisAddr == "" {
		return nil, fmt.Errorf("CACHE_BACKEND=redis requires REDIS_ADDR")
	}
	return cfg, nil
}
