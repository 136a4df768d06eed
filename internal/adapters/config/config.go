package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	AI       AIConfig       `envconfig:"AI"`
	News     NewsConfig     `envconfig:"NEWS"`
	Price    PriceConfig    `envconfig:"PRICE"`
	Evidence EvidenceConfig `envconfig:"EVIDENCE"`
	Cache    CacheConfig    `envconfig:"CACHE"`
	Redis    RedisConfig    `envconfig:"REDIS"`
	HTTP     HTTPConfig     `envconfig:"HTTP"`
	Watch    WatchConfig    `envconfig:"WATCH"`
	Logging  LoggingConfig  `envconfig:"LOGGING"`
}

// AIConfig represents generative and embedding model configuration
type AIConfig struct {
	Provider         string  `envconfig:"AI_PROVIDER" default:"openai"` // openai or claude
	APIKey           string  `envconfig:"OPENAI_API_KEY" required:"false"`
	BaseURL          string  `envconfig:"OPENAI_BASE_URL" required:"false"`
	Model            string  `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	Temperature      float32 `envconfig:"OPENAI_TEMPERATURE" default:"0.2"`
	MaxTokens        int     `envconfig:"AI_MAX_TOKENS" default:"1500"`
	AnthropicAPIKey  string  `envconfig:"ANTHROPIC_API_KEY" required:"false"`
	AnthropicBaseURL string  `envconfig:"ANTHROPIC_BASE_URL" required:"false"`
	AnthropicModel   string  `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-5"`
	PromptsDir       string  `envconfig:"PROMPTS_DIR" required:"false"`
	EmbedModel       string  `envconfig:"EMBED_MODEL" default:"text-embedding-3-small"`
	EmbedMaxAttempts int     `envconfig:"EMBED_MAX_ATTEMPTS" default:"1"`
}

// NewsConfig represents feed aggregation configuration
type NewsConfig struct {
	Feeds   []string      `envconfig:"NEWS_FEEDS" default:"https://feeds.a.dj.com/rss/RSSMarketsMain.xml,https://www.investopedia.com/feedbuilder/feed/getfeed?feedName=news,https://www.marketwatch.com/feeds/topstories"`
	Limit   int           `envconfig:"NEWS_LIMIT" default:"8"`
	Timeout time.Duration `envconfig:"NEWS_TIMEOUT" default:"10s"`
}

// PriceConfig represents price-history provider configuration
type PriceConfig struct {
	Range         string        `envconfig:"PRICE_RANGE" default:"6mo"`
	Interval      string        `envconfig:"PRICE_INTERVAL" default:"1d"`
	FallbackRange string        `envconfig:"PRICE_FALLBACK_RANGE" default:"1y"`
	Timeout       time.Duration `envconfig:"PRICE_TIMEOUT" default:"30s"`
	Proxy         string        `envconfig:"HTTPS_PROXY" required:"false"`
}

// EvidenceConfig represents the similarity index configuration
type EvidenceConfig struct {
	IndexDir     string  `envconfig:"INDEX_DIR" default:"data/index"`
	K            int     `envconfig:"EVIDENCE_K" default:"5"`
	MaxDistance  float64 `envconfig:"EVIDENCE_MAX_DISTANCE" default:"0"`
	PreviewChars int     `envconfig:"EVIDENCE_PREVIEW_CHARS" default:"240"`
}

// CacheConfig represents the analysis cache configuration
type CacheConfig struct {
	TTL     time.Duration `envconfig:"CACHE_TTL" default:"10m"`
	Backend string        `envconfig:"CACHE_BACKEND" default:"memory"` // memory or redis
}

// RedisConfig represents redis connection parameters
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" required:"false"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// HTTPConfig represents the API server configuration
type HTTPConfig struct {
	Port           string        `envconfig:"HTTP_PORT" default:"8000"`
	RateLimit      float64       `envconfig:"HTTP_RATE_LIMIT" default:"0"`
	RateBurst      int           `envconfig:"HTTP_RATE_BURST" default:"5"`
	AnalyzeTimeout time.Duration `envconfig:"ANALYZE_TIMEOUT" default:"60s"`
	CORSOrigins    []string      `envconfig:"HTTP_CORS_ORIGINS" required:"false"`
}

// WatchConfig represents the background evidence refresher
type WatchConfig struct {
	Tickers  []string      `envconfig:"WATCHLIST" required:"false"`
	Interval time.Duration `envconfig:"WATCHLIST_INTERVAL" default:"30m"`
	// Schedule is a cron expression that takes precedence over Interval when set
	Schedule string `envconfig:"WATCHLIST_SCHEDULE" required:"false"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" required:"false"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.News.Limit <= 0 {
		return fmt.Errorf("news limit must be positive")
	}
	if c.Evidence.K <= 0 {
		return fmt.Errorf("evidence k must be positive")
	}
	if c.Evidence.PreviewChars <= 0 {
		return fmt.Errorf("evidence preview chars must be positive")
	}
	if c.Evidence.MaxDistance < 0 {
		return fmt.Errorf("evidence max distance must not be negative")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.AI.Provider {
	case "openai", "claude":
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	if c.AI.EmbedMaxAttempts <= 0 {
		return fmt.Errorf("embed max attempts must be positive")
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if len(c.Watch.Tickers) > 0 && c.Watch.Interval <= 0 {
		return fmt.Errorf("watchlist interval must be positive")
	}
	return nil
}

// RedisEnabled returns true when any component is configured to use redis
func (c *Config) RedisEnabled() bool {
	return c.Cache.Backend == "redis"
}

// Addr returns redis host:port
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HasAPIKey reports whether OpenAI calls (chat and embeddings) are possible
func (c *AIConfig) HasAPIKey() bool {
	return c.APIKey != ""
}
