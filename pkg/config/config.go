package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"StockForecaster/pkg/logger"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	ProjectName string `yaml:"project_name" default:"Stock Forecaster"`
	Version     string `yaml:"version" default:"1.0.0"`
	APIPrefix   string `yaml:"api_prefix" default:"/api/v1"`
	Server      struct {
		Port            int           `yaml:"port" default:"8000"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins" default:"[\"http://localhost:3000\"]"`
	} `yaml:"server"`
	Log     logger.Config `yaml:"log"`
	Metrics struct {
		Enabled       bool          `yaml:"enabled" default:"true"`
		Path          string        `yaml:"path" default:"/metrics"`
		SlowThreshold time.Duration `yaml:"slow_threshold" default:"5s"`
	} `yaml:"metrics"`
	MarketData struct {
		APIKey    string        `yaml:"api_key"`
		BaseURL   string        `yaml:"base_url" default:"https://api.polygon.io"`
		Timeout   time.Duration `yaml:"timeout" default:"30s"`
		RateLimit int           `yaml:"rate_limit" default:"5"` // outbound requests per second
	} `yaml:"market_data"`
	Completion struct {
		APIKey      string        `yaml:"api_key"`
		BaseURL     string        `yaml:"base_url" default:"https://api.openai.com/v1"`
		Model       string        `yaml:"model" default:"gpt-4-turbo-preview"`
		MaxTokens   int           `yaml:"max_tokens" default:"2000"`
		Temperature float32       `yaml:"temperature" default:"0.3"`
		Timeout     time.Duration `yaml:"timeout" default:"60s"`
	} `yaml:"completion"`
	Retry struct {
		MaxAttempts int           `yaml:"max_attempts" default:"3"`
		Multiplier  float64       `yaml:"multiplier" default:"1"`
		Min         time.Duration `yaml:"min" default:"4s"`
		Max         time.Duration `yaml:"max" default:"10s"`
	} `yaml:"retry"`
	Cache struct {
		RedisURL string        `yaml:"redis_url"`
		TTL      time.Duration `yaml:"ttl" default:"1h"`
		Prefix   string        `yaml:"prefix" default:"forecaster"`
	} `yaml:"cache"`
	RateLimit struct {
		Enabled  bool          `yaml:"enabled"`
		Requests int           `yaml:"requests" default:"100"`
		Window   time.Duration `yaml:"window" default:"1h"`
	} `yaml:"rate_limit"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"predictions"`
		RequiredAcks int           `yaml:"required_acks" default:"-1"`
		Compression  string        `yaml:"compression" default:"gzip"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"kafka"`
	Security struct {
		APIKeyHeader string `yaml:"api_key_header" default:"X-API-Key"`
	} `yaml:"security"`
}

// Load reads and parses a YAML configuration file, then fills defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse fills defaults, then decodes YAML bytes over them so explicit zero
// values survive. It does not validate.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML, overrides with environment variables and validates.
// A missing file is not an error: the service can run from environment alone.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		if !os.IsNotExist(unwrapPathErr(err)) {
			return nil, err
		}
		if c, err = Parse(nil); err != nil {
			return nil, err
		}
	}

	c.ApplyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("POLYGON_API_KEY"); v != "" {
		c.MarketData.APIKey = v
	}
	if v := getenv("POLYGON_BASE_URL"); v != "" {
		c.MarketData.BaseURL = v
	}
	if v := getenv("OPENAI_API_KEY"); v != "" {
		c.Completion.APIKey = v
	}
	if v := getenv("OPENAI_MODEL"); v != "" {
		c.Completion.Model = v
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
	if v := getenv("CACHE_TTL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.Cache.TTL = time.Duration(secs) * time.Second
		}
	}
	if v := getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.MarketData.APIKey == "" {
		return fmt.Errorf("market_data.api_key is required")
	}
	if c.Completion.APIKey == "" {
		return fmt.Errorf("completion.api_key is required")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be positive, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.Max < c.Retry.Min {
		return fmt.Errorf("retry.max (%s) must not be below retry.min (%s)", c.Retry.Max, c.Retry.Min)
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.requests and rate_limit.window must be positive")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func unwrapPathErr(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		next := u.Unwrap()
		if next == nil {
			return err
		}
		err = next
	}
}
