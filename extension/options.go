package extension

import (
	"time"

	"github.com/xraph/plans"
	"github.com/xraph/plans/plugin"
	"github.com/xraph/plans/store"
)

// Option configures the plans Forge extension.
type Option func(*Extension)

// WithStore sets the store for the plans engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a plans.Option through to the underlying engine.
func WithEngineOption(opt plans.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a plans plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, plans.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithPlanCache sets the in-process plan cache size and TTL.
func WithPlanCache(size int, ttl time.Duration) Option {
	return func(e *Extension) {
		e.config.PlanCacheSize = size
		e.config.PlanCacheTTL = ttl
	}
}

// WithRedisAddr moves the plan cache to Redis.
func WithRedisAddr(addr string) Option {
	return func(e *Extension) { e.config.RedisAddr = addr }
}

// WithAMQPURL publishes notifications to RabbitMQ.
func WithAMQPURL(url string) Option {
	return func(e *Extension) { e.config.AMQPURL = url }
}

// WithFallbackPlanID sets the plan used for subjects without history.
func WithFallbackPlanID(planID string) Option {
	return func(e *Extension) { e.config.FallbackPlanID = planID }
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.PluginTimeout = d }
}

// WithMetrics registers the Prometheus metrics plugin.
func WithMetrics() Option {
	return func(e *Extension) { e.config.EnableMetrics = true }
}
