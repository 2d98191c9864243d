// Package config loads tampa runtime settings from the environment.
//
// Values come from process environment variables, optionally seeded from a
// .env file in the working directory:
//
//	APP_ENV=development
//	PORT=4000
//	DATABASE_URL=tampa.db
//	ACCESS_TOKEN_SECRET=change-me
//	CORS_ORIGIN=http://localhost:5173
//	TOKEN_TTL=1h
//	SEARCH_RATE=5
//	SEARCH_BURST=10
//	LOG_LEVEL=info
//	LOG_FORMAT=text
//	API_URL=http://localhost:4000
//
// Variables already present in the environment are never overridden by the
// .env file. ACCESS_TOKEN_SECRET is required when APP_ENV is production; other
// environments fall back to a fixed development secret.
package config
