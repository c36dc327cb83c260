// Package store implements the client's local durable key/value store.
//
// Every top-level collection of the dashboard lives under one canonical key
// (see keys.go). Reads never fail: errors degrade to the caller's default and
// are logged. Writes retry with a linearly growing delay and report
// ErrWriteExhausted once every attempt has failed. Deletes never fail either;
// they report success as a bool.
//
// Values are JSON encoded. The Backend decides where the bytes live; the
// SQLite backend keeps them in the kv table of the client database.
package store
