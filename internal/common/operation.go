package common

import (
	"encoding/json"
	"fmt"
	"time"
)

type OpType string

const (
	OpInsert OpType = "insert"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
	OpUpsert OpType = "upsert"
)

// Operation is one pending remote effect.
//
// LocalID carries the provisional id of the record an insert or upsert
// creates, so the acknowledged server id can be mapped back onto it.
type Operation struct {
	Type        OpType          `json:"type"`
	Table       string          `json:"table"`
	ID          string          `json:"id,omitempty"`
	ConflictKey string          `json:"conflictKey,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	LocalID     string          `json:"localId,omitempty"`
}

// Validate checks the shape of the operation for its type.
func (op Operation) Validate() error {
	if !IsKnownTable(op.Table) {
		return fmt.Errorf("%w: %q", ErrUnknownTable, op.Table)
	}
	switch op.Type {
	case OpInsert:
		if len(op.Data) == 0 {
			return fmt.Errorf("%w: insert into %s without data", ErrInvalidOp, op.Table)
		}
	case OpUpdate:
		if op.ID == "" || len(op.Data) == 0 {
			return fmt.Errorf("%w: update of %s needs id and data", ErrInvalidOp, op.Table)
		}
	case OpDelete:
		if op.ID == "" {
			return fmt.Errorf("%w: delete from %s without id", ErrInvalidOp, op.Table)
		}
	case OpUpsert:
		if op.ConflictKey == "" || len(op.Data) == 0 {
			return fmt.Errorf("%w: upsert into %s needs conflict key and data", ErrInvalidOp, op.Table)
		}
	default:
		return fmt.Errorf("%w: type %q", ErrInvalidOp, op.Type)
	}
	return nil
}

// Row is a record as persisted by the remote store.
type Row struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}
