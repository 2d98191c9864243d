// Package api is an HTTP client for the tampa CRUD service.
//
// Responses are returned as opaque Payloads that support gjson path lookups
// and JSON decoding:
//
//	c, err := api.New("http://localhost:4000", api.WithStaticToken(tok))
//	p, err := c.Get(ctx, "/users", api.WithQuery(api.Query{"active": true, "page": nil}))
//	name := p.Get("0.firstName").String()
//
// Failed responses surface as *Error carrying the status code, a message and
// the decoded body. Requests that fail because the server refused the
// connection are retried with exponential backoff; every other failure is
// returned immediately.
package api
