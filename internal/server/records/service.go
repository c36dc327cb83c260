package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/logging"
)

// Publisher receives a notification for every committed write.
type Publisher interface {
	Publish(ctx context.Context, n common.Notification)
}

type Service struct {
	repo   Repository
	pub    Publisher
	logger logging.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(repo Repository, pub Publisher, logger logging.Logger) *Service {
	return &Service{
		repo:   repo,
		pub:    pub,
		logger: logger.With("module", "records"),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

func checkTable(table string) error {
	if !common.IsKnownTable(table) {
		return fmt.Errorf("%w: %q", common.ErrUnknownTable, table)
	}
	return nil
}

// decodeObject accepts only a JSON object.
func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%w: data must be a JSON object", common.ErrInvalidOp)
	}
	return obj, nil
}

// conflictKey builds the stored key of obj for the comma-separated columns.
// Values are compacted so formatting differences do not split a key.
func conflictKey(columns string, obj map[string]json.RawMessage) (string, error) {
	var cols []string
	for _, c := range strings.Split(columns, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("%w: empty conflict key", common.ErrInvalidOp)
	}

	vals := make([]string, 0, len(cols))
	for _, c := range cols {
		v, ok := obj[c]
		if !ok {
			return "", fmt.Errorf("%w: conflict column %q missing from data", common.ErrInvalidOp, c)
		}
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return "", fmt.Errorf("%w: %w", common.ErrInvalidOp, err)
		}
		vals = append(vals, buf.String())
	}
	return strings.Join(cols, ",") + "=[" + strings.Join(vals, ",") + "]", nil
}

func keyColumns(key string) string {
	cols, _, _ := strings.Cut(key, "=")
	return cols
}

func (s *Service) publish(ctx context.Context, event string, rec Record) {
	if s.pub == nil {
		return
	}
	payload, err := json.Marshal(rec.Row())
	if err != nil {
		s.logger.Error(ctx, "cannot encode notification", "table", rec.Table, "error", err)
		return
	}
	s.pub.Publish(ctx, common.Notification{Event: event, Table: rec.Table, Payload: payload})
}

// List returns every row of table, oldest first.
func (s *Service) List(ctx context.Context, table string) ([]common.Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	recs, err := s.repo.List(ctx, table)
	if err != nil {
		return nil, err
	}
	rows := make([]common.Row, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, r.Row())
	}
	return rows, nil
}

func (s *Service) Insert(ctx context.Context, table string, data []byte) (common.Row, error) {
	if err := checkTable(table); err != nil {
		return common.Row{}, err
	}
	obj, err := decodeObject(data)
	if err != nil {
		return common.Row{}, err
	}
	body, err := json.Marshal(obj)
	if err != nil {
		return common.Row{}, err
	}

	rec, err := s.repo.Insert(ctx, Record{Table: table, ID: s.newID(), Data: body, CreatedAt: s.now()})
	if err != nil {
		return common.Row{}, err
	}
	s.logger.Debug(ctx, "record inserted", "table", table, "id", rec.ID)
	s.publish(ctx, common.EventInsert, rec)
	return rec.Row(), nil
}

// Upsert inserts data or replaces the record whose columns named in
// onConflict hold the same values.
func (s *Service) Upsert(ctx context.Context, table, onConflict string, data []byte) (common.Row, error) {
	if err := checkTable(table); err != nil {
		return common.Row{}, err
	}
	obj, err := decodeObject(data)
	if err != nil {
		return common.Row{}, err
	}
	key, err := conflictKey(onConflict, obj)
	if err != nil {
		return common.Row{}, err
	}
	body, err := json.Marshal(obj)
	if err != nil {
		return common.Row{}, err
	}

	rec, inserted, err := s.repo.Upsert(ctx, Record{Table: table, ID: s.newID(), ConflictKey: key, Data: body, CreatedAt: s.now()})
	if err != nil {
		return common.Row{}, err
	}
	event := common.EventUpdate
	if inserted {
		event = common.EventInsert
	}
	s.logger.Debug(ctx, "record upserted", "table", table, "id", rec.ID, "inserted", inserted)
	s.publish(ctx, event, rec)
	return rec.Row(), nil
}

// Update merges the top-level fields of data into the stored record.
func (s *Service) Update(ctx context.Context, table, id string, data []byte) (common.Row, error) {
	if err := checkTable(table); err != nil {
		return common.Row{}, err
	}
	patch, err := decodeObject(data)
	if err != nil {
		return common.Row{}, err
	}

	rec, err := s.repo.Update(ctx, table, id, func(r *Record) error {
		cur, err := decodeObject(r.Data)
		if err != nil {
			cur = make(map[string]json.RawMessage)
		}
		maps.Copy(cur, patch)

		if r.ConflictKey != "" {
			if r.ConflictKey, err = conflictKey(keyColumns(r.ConflictKey), cur); err != nil {
				return err
			}
		}
		if r.Data, err = json.Marshal(cur); err != nil {
			return err
		}
		r.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return common.Row{}, err
	}
	s.publish(ctx, common.EventUpdate, rec)
	return rec.Row(), nil
}

func (s *Service) Delete(ctx context.Context, table, id string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	rec, err := s.repo.Delete(ctx, table, id)
	if err != nil {
		return err
	}
	s.publish(ctx, common.EventDelete, rec)
	return nil
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
