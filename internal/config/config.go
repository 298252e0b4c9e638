// Package config loads host and pipeline configuration from the environment,
// an optional .env file and an optional YAML overlay.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration of the server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Auth      AuthConfig      `yaml:"auth"`
	Cache     CacheConfig     `yaml:"cache"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `env:"MVC_ADDR,default=:8080" yaml:"addr"`
	ReadTimeout     time.Duration `env:"MVC_READ_TIMEOUT,default=30s" yaml:"read_timeout"`
	WriteTimeout    time.Duration `env:"MVC_WRITE_TIMEOUT,default=30s" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `env:"MVC_SHUTDOWN_TIMEOUT,default=15s" yaml:"shutdown_timeout"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `env:"MVC_LOG_LEVEL,default=info" yaml:"level"`
	Format string `env:"MVC_LOG_FORMAT,default=json" yaml:"format"`
}

// PipelineConfig configures binding and result execution.
type PipelineConfig struct {
	MaxBodyBytes               int64 `env:"MVC_MAX_BODY_BYTES,default=4194304" yaml:"max_body_bytes"`
	MaxModelErrors             int   `env:"MVC_MAX_MODEL_ERRORS,default=200" yaml:"max_model_errors"`
	RespectBrowserAcceptHeader bool  `env:"MVC_RESPECT_BROWSER_ACCEPT,default=false" yaml:"respect_browser_accept_header"`
	ReturnHTTPNotAcceptable    bool  `env:"MVC_RETURN_NOT_ACCEPTABLE,default=false" yaml:"return_http_not_acceptable"`
}

// RateLimitConfig configures the rate limit resource filter. A zero rate
// disables the filter.
type RateLimitConfig struct {
	RequestsPerSecond int    `env:"MVC_RATE_LIMIT_RPS,default=0" yaml:"requests_per_second"`
	Burst             int    `env:"MVC_RATE_LIMIT_BURST,default=20" yaml:"burst"`
	CleanupSchedule   string `env:"MVC_RATE_LIMIT_CLEANUP,default=@every 5m" yaml:"cleanup_schedule"`
}

// AuthConfig configures the bearer token authorization filter. An empty
// secret disables the filter.
type AuthConfig struct {
	JWTSecret string `env:"MVC_JWT_SECRET" yaml:"jwt_secret"`
	Issuer    string `env:"MVC_JWT_ISSUER" yaml:"issuer"`
}

// CacheConfig configures the response cache resource filter. An empty
// RedisAddr selects the in-memory store; a zero TTL disables caching.
type CacheConfig struct {
	RedisAddr string        `env:"MVC_CACHE_REDIS_ADDR" yaml:"redis_addr"`
	TTL       time.Duration `env:"MVC_CACHE_TTL,default=0s" yaml:"ttl"`
}

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	AllowedOrigins string `env:"MVC_CORS_ORIGINS,default=*" yaml:"allowed_origins"`
}

// Origins returns the allowed origins as a list.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Load reads .env (if present), decodes the environment and applies the YAML
// file named by MVC_CONFIG_FILE on top.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if path := strings.TrimSpace(os.Getenv("MVC_CONFIG_FILE")); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv decodes the configuration from environment variables only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}
	return &cfg, nil
}

// ApplyFile overlays the YAML file at path. Fields absent from the file keep
// their current values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server: addr is required")
	}
	if c.Pipeline.MaxBodyBytes <= 0 {
		return fmt.Errorf("pipeline: max_body_bytes must be positive")
	}
	if c.Pipeline.MaxModelErrors <= 0 {
		return fmt.Errorf("pipeline: max_model_errors must be positive")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit: values must not be negative")
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst == 0 {
		return fmt.Errorf("rate_limit: burst is required when a rate is set")
	}
	return nil
}
