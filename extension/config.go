package extension

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the plans extension configuration.
// Fields can be set programmatically via Option functions, loaded from
// YAML configuration files (under "extensions.plans" or "plans" keys), or
// read from the environment with LoadEnvConfig.
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate" env:"PLANS_DISABLE_MIGRATE"`

	// PlanCacheSize is the number of plans kept by the in-process cache
	// (default: 256). A negative value disables plan caching.
	PlanCacheSize int `json:"plan_cache_size" mapstructure:"plan_cache_size" yaml:"plan_cache_size" env:"PLANS_PLAN_CACHE_SIZE"`

	// PlanCacheTTL bounds how long a cached plan is served (default: 5m).
	PlanCacheTTL time.Duration `json:"plan_cache_ttl" mapstructure:"plan_cache_ttl" yaml:"plan_cache_ttl" env:"PLANS_PLAN_CACHE_TTL"`

	// RedisAddr moves the plan cache to Redis when set.
	RedisAddr string `json:"redis_addr" mapstructure:"redis_addr" yaml:"redis_addr" env:"PLANS_REDIS_ADDR"`

	// AMQPURL publishes every notification to RabbitMQ when set.
	AMQPURL string `json:"amqp_url" mapstructure:"amqp_url" yaml:"amqp_url" env:"PLANS_AMQP_URL"`

	// FallbackPlanID is the plan a subject without history is subscribed
	// to on extension. Empty means the oldest plan in the catalogue.
	FallbackPlanID string `json:"fallback_plan_id" mapstructure:"fallback_plan_id" yaml:"fallback_plan_id" env:"PLANS_FALLBACK_PLAN_ID"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout" env:"PLANS_PLUGIN_TIMEOUT"`

	// EnableMetrics registers the Prometheus metrics plugin.
	EnableMetrics bool `json:"enable_metrics" mapstructure:"enable_metrics" yaml:"enable_metrics" env:"PLANS_ENABLE_METRICS"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-" env:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PlanCacheSize: 256,
		PlanCacheTTL:  5 * time.Minute,
		PluginTimeout: 5 * time.Second,
	}
}

// LoadEnvConfig reads a Config from PLANS_* environment variables. A .env
// file in the working directory is loaded first if present.
func LoadEnvConfig() (Config, error) {
	// The .env file is optional.
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("plans: parse env config: %w", err)
	}
	return cfg, nil
}
