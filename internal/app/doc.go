// Package app wires the membrane into a running system.
//
// App is the composition root: it builds the logger and Prometheus registry
// from configuration, creates the membrane, applies the exposure policy and
// starts a pool of sandbox runtimes sharing one guest field. The Manager runs
// guest applications in fields of their own, so closing one revokes exactly
// what it was given.
//
// Example Usage:
//
//	a, err := app.New(ctx, config.LoadOrDefault())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	session, err := a.Manager().Spawn("calculator", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	a.Manager().Expose(session.ID, "math", mathAPI)
package app
