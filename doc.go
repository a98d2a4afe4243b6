// Package plans manages what a subscriber may do: which plan it is on,
// for how long, and how much of each metered feature it has used.
//
// A Plan lists Features. A boolean feature is either present or not; a
// limit feature carries an integer ceiling that consumption may not cross.
// A Subscription binds a subject (any host entity addressed by kind and id)
// to a plan for a window of days. Usage records count consumption per
// subscription and feature code.
//
// # Quick Start
//
//	engine := plans.New(memory.New())
//	if err := engine.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	pro := &plan.Plan{
//	    Name:     "Pro",
//	    Duration: 30,
//	    Features: []plan.Feature{
//	        {Code: "sso", Kind: plan.KindFeature},
//	        {Code: "build.minutes", Kind: plan.KindLimit, Limit: 2000},
//	    },
//	}
//	_ = engine.CreatePlan(ctx, pro)
//
//	user := engine.Subscriber(plans.NewRef("user", "42"))
//	sub, err := user.SubscribeTo(ctx, pro, 30)
//
//	_, err = engine.ConsumeFeature(ctx, sub, "build.minutes", 50)
//	if errors.Is(err, plans.ErrLimitExceeded) {
//	    // over quota
//	}
//
// # Lifecycle
//
// A subscription is pending before it starts, active until it expires and
// expired afterwards. Cancelling does not end it early: it stays active,
// pending cancellation, until its expiry. ExtendWith either pushes the
// expiry of the same row or appends a successor row; UpgradeTo does the
// same and moves the resulting row to another plan.
//
// # Errors
//
// Operations refused by a business rule return sentinel errors that
// IsRefusal recognises. Any other error comes from the store.
//
// # Plugins
//
// Every persisted change is reported to plugins registered with WithPlugin.
// Hooks run after the write, with a timeout, and cannot fail the operation.
package plans
