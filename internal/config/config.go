// Package config loads and validates gateway configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Search     SearchConfig     `mapstructure:"search"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Enrich     EnrichConfig     `mapstructure:"enrich"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	// TrustProxyHeaders keys clients on forwarding headers instead of the socket peer.
	TrustProxyHeaders bool `mapstructure:"trust_proxy_headers"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// RateLimitConfig sizes the per-client sliding window.
type RateLimitConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxRequests   int           `mapstructure:"max_requests"`
	Window        time.Duration `mapstructure:"window"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// CacheConfig sizes the response cache.
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	TTL           time.Duration `mapstructure:"ttl"`
	MaxEntries    int           `mapstructure:"max_entries"`
	Shards        int           `mapstructure:"shards"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// SearchConfig bounds paginated requests.
type SearchConfig struct {
	DefaultLimit      int    `mapstructure:"default_limit"`
	MaxLimit          int    `mapstructure:"max_limit"`
	MaxPage           int    `mapstructure:"max_page"`
	MixDefaultLimit   int    `mapstructure:"mix_default_limit"`
	MixMaxLimit       int    `mapstructure:"mix_max_limit"`
	DefaultSafeSearch string `mapstructure:"default_safesearch"`
	MaxSuggestions    int    `mapstructure:"max_suggestions"`
}

// BackendConfig configures the upstream search client.
type BackendConfig struct {
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RPS          float64       `mapstructure:"rps"`
	Burst        int           `mapstructure:"burst"`
	MaxBodyBytes int           `mapstructure:"max_body_bytes"`
	MaxPages     int           `mapstructure:"max_pages"`
	HTMLURL      string        `mapstructure:"html_url"`
	APIURL       string        `mapstructure:"api_url"`
}

// EnrichConfig configures the fetch/extract pool.
type EnrichConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxBatch      int           `mapstructure:"max_batch"`
	MaxBodyBytes  int           `mapstructure:"max_body_bytes"`
	UserAgent     string        `mapstructure:"user_agent"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	PerHostRPS    float64       `mapstructure:"per_host_rps"`
	PerHostBurst  int           `mapstructure:"per_host_burst"`
	// MaxHosts caps the per-host buckets kept by the enrichment throttle.
	MaxHosts int `mapstructure:"max_hosts"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	MaxParallel        int           `mapstructure:"max_parallel"`
	NavTimeout         time.Duration `mapstructure:"nav_timeout"`
	PromotionThreshold int           `mapstructure:"promotion_threshold"`
}

// TranscriptConfig configures caption retrieval.
type TranscriptConfig struct {
	DefaultLanguages []string      `mapstructure:"default_languages"`
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// CORSConfig lists allowed origins.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// TelemetryConfig configures tracing. An empty ProjectID keeps spans local.
type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	ProjectID   string `mapstructure:"project_id"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TURBODUCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

const defaultUserAgent = "Mozilla/5.0 (compatible; TurboDuck/1.1; +https://github.com/JakeFAU/turboduck)"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.trust_proxy_headers", false)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.max_requests", 60)
	v.SetDefault("ratelimit.window", "60s")
	v.SetDefault("ratelimit.sweep_interval", "1m")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "30m")
	v.SetDefault("cache.max_entries", 10000)
	v.SetDefault("cache.shards", 16)
	v.SetDefault("cache.sweep_interval", "5m")
	v.SetDefault("search.default_limit", 10)
	v.SetDefault("search.max_limit", 50)
	v.SetDefault("search.max_page", 20)
	v.SetDefault("search.mix_default_limit", 5)
	v.SetDefault("search.mix_max_limit", 20)
	v.SetDefault("search.default_safesearch", "moderate")
	v.SetDefault("search.max_suggestions", 20)
	v.SetDefault("backend.user_agent", defaultUserAgent)
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.rps", 2)
	v.SetDefault("backend.burst", 4)
	v.SetDefault("backend.max_body_bytes", 2*1024*1024)
	v.SetDefault("backend.max_pages", 5)
	v.SetDefault("backend.html_url", "https://html.duckduckgo.com/html/")
	v.SetDefault("backend.api_url", "https://duckduckgo.com")
	v.SetDefault("enrich.concurrency", 8)
	v.SetDefault("enrich.timeout", "10s")
	v.SetDefault("enrich.max_batch", 20)
	v.SetDefault("enrich.max_body_bytes", 5*1024*1024)
	v.SetDefault("enrich.user_agent", defaultUserAgent)
	v.SetDefault("enrich.respect_robots", false)
	v.SetDefault("enrich.per_host_rps", 0)
	v.SetDefault("enrich.per_host_burst", 2)
	v.SetDefault("enrich.max_hosts", 1024)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout", "25s")
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("transcript.default_languages", []string{"en"})
	v.SetDefault("transcript.base_url", "https://www.youtube.com")
	v.SetDefault("transcript.timeout", "15s")
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("telemetry.service_name", "turboduck")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be > 0")
	}
	if c.RateLimit.Enabled && (c.RateLimit.MaxRequests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("ratelimit.max_requests and ratelimit.window must be > 0 when rate limiting is enabled")
	}
	if c.Cache.Enabled && (c.Cache.TTL <= 0 || c.Cache.MaxEntries <= 0) {
		return fmt.Errorf("cache.ttl and cache.max_entries must be > 0 when caching is enabled")
	}
	if c.Search.MaxLimit <= 0 {
		return fmt.Errorf("search.max_limit must be > 0")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit must be between 1 and search.max_limit")
	}
	if c.Search.MixDefaultLimit <= 0 || c.Search.MixDefaultLimit > c.Search.MixMaxLimit {
		return fmt.Errorf("search.mix_default_limit must be between 1 and search.mix_max_limit")
	}
	switch c.Search.DefaultSafeSearch {
	case "off", "moderate", "strict":
	default:
		return fmt.Errorf("search.default_safesearch must be off, moderate or strict")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be > 0")
	}
	if c.Enrich.Concurrency <= 0 {
		return fmt.Errorf("enrich.concurrency must be > 0")
	}
	if c.Enrich.Timeout <= 0 {
		return fmt.Errorf("enrich.timeout must be > 0")
	}
	if c.Enrich.MaxBatch <= 0 {
		return fmt.Errorf("enrich.max_batch must be > 0")
	}
	if c.Enrich.PerHostRPS < 0 {
		return fmt.Errorf("enrich.per_host_rps must be >= 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	return nil
}
