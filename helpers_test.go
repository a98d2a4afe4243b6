package plans_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/xraph/plans"
	"github.com/xraph/plans/event"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/store/memory"
)

var t0 = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

// capture records the names of emitted events.
type capture struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *capture) Name() string { return "capture" }

func (c *capture) OnEvent(_ context.Context, e event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capture) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Name())
	}
	return out
}

func (c *capture) last() event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return nil
	}
	return c.events[len(c.events)-1]
}

type fixture struct {
	engine *plans.Engine
	clock  *clockwork.FakeClock
	events *capture
	store  *memory.Store
	basic  *plan.Plan
	pro    *plan.Plan
}

func newFixture(t *testing.T, opts ...plans.Option) *fixture {
	t.Helper()

	f := &fixture{
		clock:  clockwork.NewFakeClockAt(t0),
		events: &capture{},
		store:  memory.New(),
	}

	base := []plans.Option{
		plans.WithClock(f.clock),
		plans.WithLogger(slog.New(slog.DiscardHandler)),
		plans.WithPlugin(f.events),
	}
	f.engine = plans.New(f.store, append(base, opts...)...)

	ctx := context.Background()
	require.NoError(t, f.engine.Start(ctx))
	t.Cleanup(func() { _ = f.engine.Stop() })

	f.basic = &plan.Plan{
		Name:     "Basic",
		Price:    plans.USD(900),
		Duration: 30,
		Features: []plan.Feature{
			{Name: "Builds", Code: "build.minutes", Kind: plan.KindLimit, Limit: 2000},
			{Name: "Single sign-on", Code: "sso", Kind: plan.KindFeature},
		},
	}
	require.NoError(t, f.engine.CreatePlan(ctx, f.basic))

	f.clock.Advance(time.Second)

	f.pro = &plan.Plan{
		Name:     "Pro",
		Price:    plans.USD(4900),
		Duration: 30,
		Features: []plan.Feature{
			{Name: "Builds", Code: "build.minutes", Kind: plan.KindLimit, Limit: 10000},
			{Name: "Single sign-on", Code: "sso", Kind: plan.KindFeature},
		},
	}
	require.NoError(t, f.engine.CreatePlan(ctx, f.pro))

	return f
}
