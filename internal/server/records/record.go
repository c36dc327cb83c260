// Package records stores the rows of every mirrored table as JSON documents
// keyed by table and server id, and publishes a change notification for each
// write.
package records

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/common"
)

// ErrConflict reports a write that would duplicate another record's
// conflict key.
var ErrConflict = errors.New("conflicting record")

// Record is one stored row.
//
// ConflictKey is empty for rows created by a plain insert. Upserted rows carry
// "<columns>=<values>" so a later upsert with the same columns finds them.
type Record struct {
	Table       string
	ID          string
	ConflictKey string
	Data        json.RawMessage
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (r Record) Row() common.Row {
	return common.Row{ID: r.ID, CreatedAt: r.CreatedAt, Data: r.Data}
}

// Repository persists records.
type Repository interface {
	List(ctx context.Context, table string) ([]Record, error)
	Insert(ctx context.Context, rec Record) (Record, error)
	// Upsert inserts rec or replaces the data of the record sharing its
	// conflict key. inserted reports which happened.
	Upsert(ctx context.Context, rec Record) (out Record, inserted bool, err error)
	// Update loads the record, lets fn change it and stores the result
	// atomically.
	Update(ctx context.Context, table, id string, fn func(*Record) error) (Record, error)
	Delete(ctx context.Context, table, id string) (Record, error)
	Ping(ctx context.Context) error
}
