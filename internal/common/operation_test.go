package common

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperation_Validate(t *testing.T) {
	data := json.RawMessage(`{"a":1}`)

	tests := []struct {
		name string
		op   Operation
		want error
	}{
		{"insert ok", Operation{Type: OpInsert, Table: TableUsers, Data: data}, nil},
		{"insert without data", Operation{Type: OpInsert, Table: TableUsers}, ErrInvalidOp},
		{"update ok", Operation{Type: OpUpdate, Table: TableUsers, ID: "u1", Data: data}, nil},
		{"update without id", Operation{Type: OpUpdate, Table: TableUsers, Data: data}, ErrInvalidOp},
		{"delete ok", Operation{Type: OpDelete, Table: TableFeedLikes, ID: "l1"}, nil},
		{"delete without id", Operation{Type: OpDelete, Table: TableFeedLikes}, ErrInvalidOp},
		{"upsert ok", Operation{Type: OpUpsert, Table: TableDailyLogs, ConflictKey: DailyLogConflictKey, Data: data}, nil},
		{"upsert without key", Operation{Type: OpUpsert, Table: TableDailyLogs, Data: data}, ErrInvalidOp},
		{"unknown table", Operation{Type: OpInsert, Table: "orders", Data: data}, ErrUnknownTable},
		{"unknown type", Operation{Type: "merge", Table: TableUsers, Data: data}, ErrInvalidOp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestMatchesEvent(t *testing.T) {
	assert.True(t, MatchesEvent(EventAll, EventInsert))
	assert.True(t, MatchesEvent("", EventDelete))
	assert.True(t, MatchesEvent(EventUpdate, EventUpdate))
	assert.False(t, MatchesEvent(EventUpdate, EventInsert))
}
