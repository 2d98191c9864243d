// Package resource provides an async data container driven by reactive
// parameters.
//
// A Resource tracks the signals read by its Params function. Whenever they
// change, or Reload is called, it starts a new run: the previous run's
// context is cancelled and the loader is called in a new goroutine. Results
// are applied by run id, so a run that started later always wins over an
// earlier one that finishes late.
//
//	userID := reactive.NewSignal(1)
//	user := resource.MustNew(resource.Options[int, User]{
//	    Name:   "user",
//	    Params: userID.Get,
//	    Loader: func(ctx context.Context, req resource.Request[int, User]) (User, error) {
//	        return client.User(ctx, req.Params)
//	    },
//	    Host: component,
//	})
//
//	switch user.Status() {
//	case resource.Loading, resource.Reloading:
//	case resource.Resolved:
//	    fmt.Println(user.Value().Name)
//	case resource.Error:
//	    fmt.Println(user.Err())
//	}
//
// # Lifecycle
//
// With a Host, the resource registers a controller. Disconnecting the host
// cancels the in-flight run and sets Idle. Reconnecting starts a new run.
// Destroy cancels the in-flight run and stops the resource for good. A
// resource created inside a reactive owner is destroyed with it.
//
// # Ordering
//
// All state transitions run on a per-resource serial executor. Loaders run
// concurrently, but their results are applied one at a time and discarded
// when their run has been superseded or cancelled.
package resource
