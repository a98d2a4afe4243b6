package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/xraph/plans/event"
	"github.com/xraph/plans/plugin"
)

// ErrCircuitOpen is returned while the breaker is rejecting publishes.
var ErrCircuitOpen = errors.New("plans/eventbus: circuit open")

// Compile-time interface checks.
var (
	_ plugin.Plugin     = (*Bridge)(nil)
	_ plugin.OnEvent    = (*Bridge)(nil)
	_ plugin.OnShutdown = (*Bridge)(nil)
)

// Envelope is the JSON document published for every notification.
type Envelope struct {
	EventID    string          `json:"event_id"`
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// BreakerSettings tunes the circuit breaker in front of the publisher.
type BreakerSettings struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold uint32
	// Timeout is how long the circuit stays open before a probe.
	Timeout time.Duration
}

// DefaultBreakerSettings returns the settings used by NewBridge.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{FailureThreshold: 5, Timeout: 30 * time.Second}
}

// Bridge is a plugin that publishes every event it sees. Publishing
// failures are logged by the plugin registry and never reach the caller
// of the lifecycle operation.
type Bridge struct {
	publisher Publisher
	breaker   *gobreaker.CircuitBreaker[any]
	logger    *slog.Logger
}

// BridgeOption configures a Bridge.
type BridgeOption func(*bridgeConfig)

type bridgeConfig struct {
	logger  *slog.Logger
	breaker BreakerSettings
}

// WithLogger sets the bridge logger.
func WithLogger(l *slog.Logger) BridgeOption {
	return func(c *bridgeConfig) { c.logger = l }
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(s BreakerSettings) BridgeOption {
	return func(c *bridgeConfig) { c.breaker = s }
}

// NewBridge creates a bridge publishing through p.
func NewBridge(p Publisher, opts ...BridgeOption) *Bridge {
	cfg := bridgeConfig{logger: slog.Default(), breaker: DefaultBreakerSettings()}
	for _, opt := range opts {
		opt(&cfg)
	}

	b := &Bridge{publisher: p, logger: cfg.logger}
	b.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "plans.eventbus",
		Timeout: cfg.breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.breaker.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return b
}

func (b *Bridge) Name() string { return "eventbus" }

// OnEvent wraps e in an Envelope and publishes it with the event name as
// routing key.
func (b *Bridge) OnEvent(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("plans/eventbus: encode %s: %w", e.Name(), err)
	}

	meta := e.Metadata()
	body, err := json.Marshal(Envelope{
		EventID:    meta.ID.String(),
		Name:       e.Name(),
		OccurredAt: meta.At,
		Payload:    payload,
	})
	if err != nil {
		return fmt.Errorf("plans/eventbus: encode envelope: %w", err)
	}

	_, err = b.breaker.Execute(func() (any, error) {
		return nil, b.publisher.Publish(ctx, e.Name(), body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// OnShutdown closes the publisher.
func (b *Bridge) OnShutdown(_ context.Context) error {
	return b.publisher.Close()
}

// State reports the breaker state.
func (b *Bridge) State() gobreaker.State { return b.breaker.State() }
