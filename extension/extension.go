// Package extension provides the Forge extension adapter for plans.
//
// It implements the forge.Extension interface to integrate the plans engine
// into a Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions,
// via YAML configuration files under "extensions.plans" or "plans" keys,
// or from PLANS_* environment variables through LoadEnvConfig.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/plans"
	"github.com/xraph/plans/eventbus"
	"github.com/xraph/plans/id"
	"github.com/xraph/plans/observability"
	"github.com/xraph/plans/store"
	"github.com/xraph/plans/store/cache"
	"github.com/xraph/plans/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "plans"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Subscription plans and usage metering"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the plans engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *plans.Engine
	store      store.Store
	redis      *redis.Client
	engineOpts []plans.Option
}

// New creates a new plans Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying plans engine.
// This is nil until Register is called.
func (e *Extension) Engine() *plans.Engine { return e.engine }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// initializes the plans engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(); err != nil {
		return err
	}

	return vessel.Provide(fapp.Container(), func() (*plans.Engine, error) {
		return e.engine, nil
	})
}

// build assembles the store decorators and engine from the resolved config.
func (e *Extension) build() error {
	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}
	e.store = e.wrapStore(e.store)

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}

	e.engine = plans.New(e.store, opts...)
	return nil
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("plans: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	var errs []error
	if e.engine != nil {
		errs = append(errs, e.engine.Stop())
	}
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	e.MarkStopped()
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("plans: store not initialized")
	}
	return e.store.Ping(ctx)
}

// wrapStore puts the plan cache in front of s unless caching is disabled.
func (e *Extension) wrapStore(s store.Store) store.Store {
	if e.config.PlanCacheSize < 0 {
		return s
	}

	var backend cache.Backend
	if e.config.RedisAddr != "" {
		e.redis = redis.NewClient(&redis.Options{Addr: e.config.RedisAddr})
		backend = cache.NewRedisBackend(e.redis, cache.DefaultRedisPrefix, e.config.PlanCacheTTL)
	} else {
		backend = cache.NewLRUBackend(e.config.PlanCacheSize, e.config.PlanCacheTTL)
	}

	return cache.New(s, backend)
}

// buildEngineOpts constructs plans.Option values from the resolved config.
func (e *Extension) buildEngineOpts() ([]plans.Option, error) {
	opts := make([]plans.Option, 0, len(e.engineOpts)+5)

	if e.config.DisableMigrate {
		opts = append(opts, plans.WithSkipMigrate())
	}

	if e.config.PluginTimeout > 0 {
		opts = append(opts, plans.WithPluginTimeout(e.config.PluginTimeout))
	}

	if e.config.FallbackPlanID != "" {
		planID, err := id.ParsePlanID(e.config.FallbackPlanID)
		if err != nil {
			return nil, fmt.Errorf("plans: fallback_plan_id: %w", err)
		}
		opts = append(opts, plans.WithFallbackPlanID(planID))
	}

	if e.config.AMQPURL != "" {
		pub, err := eventbus.NewRabbitMQPublisher(e.config.AMQPURL, nil)
		if err != nil {
			return nil, err
		}
		opts = append(opts, plans.WithPlugin(eventbus.NewBridge(pub)))
	}

	if e.config.EnableMetrics {
		factory := observability.NewPrometheusFactory(prometheus.DefaultRegisterer)
		opts = append(opts, plans.WithPlugin(observability.NewMetricsExtension(factory)))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("plans: configuration is required but not found in config files; " +
				"ensure 'extensions.plans' or 'plans' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("plans: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("plan_cache_size", e.config.PlanCacheSize),
		forge.F("plan_cache_ttl", e.config.PlanCacheTTL),
		forge.F("redis", e.config.RedisAddr != ""),
		forge.F("amqp", e.config.AMQPURL != ""),
		forge.F("fallback_plan_id", e.config.FallbackPlanID),
		forge.F("plugin_timeout", e.config.PluginTimeout),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.plans", "plans"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("plans: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("plans: failed to bind config",
			forge.F("key", key),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.PlanCacheSize == 0 {
		cfg.PlanCacheSize = defaults.PlanCacheSize
	}
	if cfg.PlanCacheTTL == 0 {
		cfg.PlanCacheTTL = defaults.PlanCacheTTL
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.EnableMetrics {
		yamlConfig.EnableMetrics = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.RedisAddr == "" {
		yamlConfig.RedisAddr = programmaticConfig.RedisAddr
	}
	if yamlConfig.AMQPURL == "" {
		yamlConfig.AMQPURL = programmaticConfig.AMQPURL
	}
	if yamlConfig.FallbackPlanID == "" {
		yamlConfig.FallbackPlanID = programmaticConfig.FallbackPlanID
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.PlanCacheSize == 0 {
		yamlConfig.PlanCacheSize = programmaticConfig.PlanCacheSize
	}
	if yamlConfig.PlanCacheTTL == 0 {
		yamlConfig.PlanCacheTTL = programmaticConfig.PlanCacheTTL
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
