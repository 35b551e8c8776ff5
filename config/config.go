package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration
//
//nolint:govet // Field alignment optimization would reduce readability
type Config struct {
	Server          ServerConfig
	Upstream        UpstreamConfig
	Cache           CacheConfig
	Session         SessionConfig
	ReCAPTCHA       ReCAPTCHAConfig
	EventTriggers   EventTriggersConfig
	SubmissionGuard SubmissionGuardConfig
	Logging         LoggingConfig
	Observability   ObservabilityConfig
	Profiling       ProfilingConfig
}

type ServerConfig struct {
	Port           string
	GinMode        string
	AppEnv         string
	AllowedOrigins []string
}

// UpstreamConfig points at the dealer, catalog and review endpoints. An empty
// BaseURL means it is derived from each page URL.
type UpstreamConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

type CacheConfig struct {
	CarCatalogTTLSeconds int // 0 disables the catalog cache
}

type SessionConfig struct {
	JWTSecret  string // empty: identity comes from plain cookies
	JWTIssuer  string
	CookieName string
}

type ReCAPTCHAConfig struct {
	SecretKey string
	SiteKey   string
}

type EventTriggersConfig struct {
	ReviewPostedTriggerURL string
}

type SubmissionGuardConfig struct {
	RedisURL   string // empty: in-memory guard
	TTLSeconds int
}

type LoggingConfig struct {
	Level      string
	Dir        string
	MaxSizeMB  int
	MaxBackups int
}

type ObservabilityConfig struct {
	ExporterEndpoint  string
	ServiceName       string
	ServiceNamespace  string
	ServiceVersion    string
	ServiceInstanceID string
}

type ProfilingConfig struct {
	Enabled               bool
	Endpoint              string
	AppName               string
	SampleTypes           string
	UploadIntervalSeconds int
}

// Load reads configuration from environment variables and an optional .env file
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("ALLOWED_CORS_ORIGINS", "http://localhost:8000")
	v.SetDefault("UPSTREAM_BASE_URL", "")
	v.SetDefault("UPSTREAM_TIMEOUT_SECONDS", 30)
	v.SetDefault("CAR_CATALOG_CACHE_TTL", 300)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "/app/logs")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 3)
	v.SetDefault("O11Y_EXPORTER_ENDPOINT", "alloy:4318") // OTLP over HTTP
	v.SetDefault("O11Y_BE_SERVICE_NAME", "dealer-review")
	v.SetDefault("O11Y_SERVICE_NAMESPACE", "bestcars")
	v.SetDefault("O11Y_BE_SERVICE_VERSION", "1.0.0")
	v.SetDefault("O11Y_PROFILING_ENABLED", false)
	v.SetDefault("O11Y_PROFILING_APP_NAME", "dealer-review")
	v.SetDefault("O11Y_PROFILING_SAMPLE_TYPES", "cpu,alloc_space,alloc_objects,goroutines")
	v.SetDefault("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS", 15)
	v.SetDefault("SESSION_JWT_ISSUER", "bestcars")
	v.SetDefault("SESSION_COOKIE_NAME", "session")
	v.SetDefault("SUBMISSION_GUARD_TTL_SECONDS", 120)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	_ = v.ReadInConfig() //nolint:errcheck // Ignore error if .env file doesn't exist

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			GinMode:        v.GetString("GIN_MODE"),
			AppEnv:         v.GetString("APP_ENV"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_CORS_ORIGINS")),
		},
		Upstream: UpstreamConfig{
			BaseURL:        v.GetString("UPSTREAM_BASE_URL"),
			TimeoutSeconds: v.GetInt("UPSTREAM_TIMEOUT_SECONDS"),
		},
		Cache: CacheConfig{
			CarCatalogTTLSeconds: v.GetInt("CAR_CATALOG_CACHE_TTL"),
		},
		Session: SessionConfig{
			JWTSecret:  v.GetString("SESSION_JWT_SECRET"),
			JWTIssuer:  v.GetString("SESSION_JWT_ISSUER"),
			CookieName: v.GetString("SESSION_COOKIE_NAME"),
		},
		ReCAPTCHA: ReCAPTCHAConfig{
			SecretKey: v.GetString("RECAPTCHA_SECRET_KEY"),
			SiteKey:   v.GetString("RECAPTCHA_SITE_KEY"),
		},
		EventTriggers: EventTriggersConfig{
			ReviewPostedTriggerURL: v.GetString("REVIEW_POSTED_TRIGGER_URL"),
		},
		SubmissionGuard: SubmissionGuardConfig{
			RedisURL:   v.GetString("REDIS_URL"),
			TTLSeconds: v.GetInt("SUBMISSION_GUARD_TTL_SECONDS"),
		},
		Logging: LoggingConfig{
			Level:      v.GetString("LOG_LEVEL"),
			Dir:        v.GetString("LOG_DIR"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
		},
		Observability: ObservabilityConfig{
			ExporterEndpoint:  v.GetString("O11Y_EXPORTER_ENDPOINT"),
			ServiceName:       v.GetString("O11Y_BE_SERVICE_NAME"),
			ServiceNamespace:  v.GetString("O11Y_SERVICE_NAMESPACE"),
			ServiceVersion:    v.GetString("O11Y_BE_SERVICE_VERSION"),
			ServiceInstanceID: v.GetString("SERVICE_INSTANCE_ID"),
		},
		Profiling: ProfilingConfig{
			Enabled:               v.GetBool("O11Y_PROFILING_ENABLED"),
			Endpoint:              v.GetString("O11Y_PROFILING_ENDPOINT"),
			AppName:               v.GetString("O11Y_PROFILING_APP_NAME"),
			SampleTypes:           v.GetString("O11Y_PROFILING_SAMPLE_TYPES"),
			UploadIntervalSeconds: v.GetInt("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func splitList(s string) []string {
	items := []string{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_CORS_ORIGINS is required")
	}

	if c.Upstream.BaseURL != "" {
		u, err := url.Parse(c.Upstream.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("UPSTREAM_BASE_URL must be an absolute URL")
		}
	} else {
		// upstream URLs are derived from the public origins
		for _, origin := range c.Server.AllowedOrigins {
			if !isOrigin(origin) {
				return fmt.Errorf("ALLOWED_CORS_ORIGINS entry %q must be an http(s) origin when UPSTREAM_BASE_URL is empty", origin)
			}
		}
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT_SECONDS must be positive")
	}
	if c.Cache.CarCatalogTTLSeconds < 0 {
		return fmt.Errorf("CAR_CATALOG_CACHE_TTL must not be negative")
	}

	if c.ReCAPTCHA.SiteKey != "" && c.ReCAPTCHA.SecretKey == "" {
		return fmt.Errorf("RECAPTCHA_SECRET_KEY is required when RECAPTCHA_SITE_KEY is set")
	}

	if c.Profiling.Enabled && c.Profiling.Endpoint == "" {
		return fmt.Errorf("O11Y_PROFILING_ENDPOINT is required when profiling is enabled")
	}

	return nil
}

func isOrigin(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && strings.Trim(u.Path, "/") == "" && u.RawQuery == ""
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development" || c.Server.GinMode == "debug"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.AppEnv == "production"
}
