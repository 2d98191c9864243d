// Package telemetry records Prometheus metrics and OpenTelemetry spans for
// resource runs, HTTP requests and live sessions.
//
// A single *Telemetry serves as the resource.Observer for every resource and
// as chi middleware for the API router:
//
//	tel := telemetry.New(telemetry.WithNamespace("tampa"))
//	r.Use(tel.Middleware)
//	res, _ := resource.New(resource.Options[string, []api.User]{
//	    Observer: tel,
//	    ...
//	})
//
// Spans go to the global tracer provider. Install an SDK provider with
// otel.SetTracerProvider before calling New to export them.
package telemetry
