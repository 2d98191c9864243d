// Package store persists users and their credentials in SQLite.
//
// The pure-Go modernc.org/sqlite driver is used, so the binary needs no cgo.
// Passwords are stored as bcrypt hashes and never leave the package except
// through Credential.
package store
