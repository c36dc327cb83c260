// Package common defines the wire contract shared by the goalboard client and
// server: table names, queued operations, persisted rows and realtime
// envelopes. Callers should use errors.Is to match the sentinel errors.
package common

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrUnknownTable = errors.New("unknown table")
	ErrInvalidOp    = errors.New("invalid operation")
)
