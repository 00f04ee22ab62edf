// Package config loads the chatbot configuration from defaults, an optional
// chatbot.yaml file and the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig
	Logging   LoggingConfig
	LLM       LLMConfig
	Telemetry TelemetryConfig
	Sandbox   SandboxConfig
	Cache     CacheConfig

	// DebugAnalysis logs generated scripts and execution diagnostics.
	DebugAnalysis bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// LoggingConfig selects the zap encoder and level.
type LoggingConfig struct {
	Mode  string
	Level string
}

// LLMConfig holds the completion backend settings.
type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	MaxRetries  int
	BaseBackoff time.Duration
	Timeout     time.Duration
}

// TelemetryConfig points build_url/http_get at the vehicle signals API.
type TelemetryConfig struct {
	BaseURL   string
	Token     string
	VehicleID string
	TripID    string
	Timeout   time.Duration
}

// SandboxConfig bounds script execution.
type SandboxConfig struct {
	Timeout time.Duration
}

// CacheConfig selects and sizes the script cache.
type CacheConfig struct {
	Backend    string
	TTL        time.Duration
	MaxEntries int
	RedisAddr  string
	Prefix     string
	VersionID  string
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8000")
	v.SetDefault("env", "production")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_request_timeout", 180.0)
	v.SetDefault("allowed_origins", "http://localhost:5173,http://localhost:5174,http://localhost:3000")

	v.SetDefault("gemini_base_url", "https://generativelanguage.googleapis.com/v1")
	v.SetDefault("gemini_model", "gemini-1.5-flash")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("gemini_max_retries", 2)
	v.SetDefault("gemini_retry_backoff", 1.0)
	v.SetDefault("gemini_timeout", 60.0)

	v.SetDefault("vehicle_api_url", "https://mapache.gauchoracing.com/api/query/signals")
	v.SetDefault("vehicle_api_token", "")
	v.SetDefault("vehicle_id", "gr24-main")
	v.SetDefault("trip_id", "4")
	v.SetDefault("vehicle_data_timeout", 30.0)

	v.SetDefault("script_timeout", 20.0)
	v.SetDefault("debug_analysis", false)

	v.SetDefault("cache_backend", "memory")
	v.SetDefault("script_cache_ttl_seconds", 3600.0)
	v.SetDefault("script_cache_max_entries", 1024)
	v.SetDefault("redis_addr", "127.0.0.1:6379")
	v.SetDefault("cache_prefix", "chatbot")
	v.SetDefault("cache_version", "v1")
}

// New loads and validates the application configuration
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("chatbot")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	return Load(v)
}

// Load builds a Config from an already prepared viper instance. Environment
// variables named after the upper-cased keys override file values.
func Load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("port"),
			RequestTimeout: seconds(v.GetFloat64("http_request_timeout")),
			AllowedOrigins: splitList(v.GetString("allowed_origins")),
		},
		Logging: LoggingConfig{
			Mode:  v.GetString("env"),
			Level: v.GetString("log_level"),
		},
		LLM: LLMConfig{
			BaseURL:     v.GetString("gemini_base_url"),
			Model:       v.GetString("gemini_model"),
			APIKey:      v.GetString("gemini_api_key"),
			MaxRetries:  v.GetInt("gemini_max_retries"),
			BaseBackoff: seconds(v.GetFloat64("gemini_retry_backoff")),
			Timeout:     seconds(v.GetFloat64("gemini_timeout")),
		},
		Telemetry: TelemetryConfig{
			BaseURL:   v.GetString("vehicle_api_url"),
			Token:     v.GetString("vehicle_api_token"),
			VehicleID: v.GetString("vehicle_id"),
			TripID:    v.GetString("trip_id"),
			Timeout:   seconds(v.GetFloat64("vehicle_data_timeout")),
		},
		Sandbox: SandboxConfig{
			Timeout: seconds(v.GetFloat64("script_timeout")),
		},
		Cache: CacheConfig{
			Backend:    strings.ToLower(v.GetString("cache_backend")),
			TTL:        seconds(v.GetFloat64("script_cache_ttl_seconds")),
			MaxEntries: v.GetInt("script_cache_max_entries"),
			RedisAddr:  v.GetString("redis_addr"),
			Prefix:     v.GetString("cache_prefix"),
			VersionID:  v.GetString("cache_version"),
		},
		DebugAnalysis: v.GetBool("debug_analysis"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return cfg, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("port must be set")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("http_request_timeout must be positive, got: %s", c.Server.RequestTimeout)
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("gemini_base_url must be set")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("gemini_model must be set")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("gemini_max_retries must not be negative, got: %d", c.LLM.MaxRetries)
	}
	if c.Telemetry.BaseURL == "" {
		return fmt.Errorf("vehicle_api_url must be set")
	}
	if c.Sandbox.Timeout <= 0 {
		return fmt.Errorf("script_timeout must be positive, got: %s", c.Sandbox.Timeout)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("script_cache_ttl_seconds must be positive, got: %s", c.Cache.TTL)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("script_cache_max_entries must be positive, got: %d", c.Cache.MaxEntries)
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("redis_addr is required when cache_backend is redis")
		}
	default:
		return fmt.Errorf("unsupported cache_backend: %s, must be 'memory' or 'redis'", c.Cache.Backend)
	}

	return nil
}

// seconds converts the float-second values used in the environment.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
