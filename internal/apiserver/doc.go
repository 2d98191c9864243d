// Package apiserver serves the tampa CRUD API over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /users
//	GET  /users/{id}
//	POST /users/{id}/active        (bearer token)
//	GET  /search/{query}?limit=n   (rate limited per client)
//	GET  /auth/users/{username}    (bearer token)
//	POST /auth/signin
//	POST /auth/signout
//	GET  /auth/authenticated
//	GET  /metrics                  (when telemetry is enabled)
//	GET  /live                     (when a live handler is mounted)
//
// Errors are rendered as {"error": message, "status": code, "data": any}.
package apiserver
