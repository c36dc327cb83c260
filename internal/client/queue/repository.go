package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/dbx"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusFailed  Status = "failed"
)

// Entry is a stored operation.
type Entry struct {
	Seq       int64
	Op        common.Operation
	Attempts  int
	Status    Status
	LastError string
	CreatedAt time.Time
}

// Repository is the durable, ordered operation log.
type Repository interface {
	Verify(ctx context.Context) error
	Append(ctx context.Context, op common.Operation) (int64, error)
	// List returns up to limit entries with status in seq order.
	List(ctx context.Context, status Status, limit int) ([]Entry, error)
	Remove(ctx context.Context, seq int64) error
	RecordAttempt(ctx context.Context, seq int64, status Status, lastErr string) error
	Count(ctx context.Context, status Status) (int, error)
	Clear(ctx context.Context, status Status) (int64, error)
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Verify(ctx context.Context) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&n); err != nil {
		return fmt.Errorf("sync queue unavailable: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Append(ctx context.Context, op common.Operation) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_queue (op_type, tbl, record_id, conflict_key, local_id, data, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, string(op.Type), op.Table, op.ID, op.ConflictKey, op.LocalID, []byte(op.Data), string(StatusPending),
		time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to append %s %s: %w", op.Type, op.Table, err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue seq: %w", err)
	}
	return seq, nil
}

func (r *SQLiteRepository) List(ctx context.Context, status Status, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, op_type, tbl, record_id, conflict_key, local_id, data, attempts, status, last_error, created_at
		FROM sync_queue
		WHERE status = ?
		ORDER BY seq
		LIMIT ?
	`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e      Entry
			opType string
			st     string
			data   []byte
			millis int64
		)
		if err := rows.Scan(&e.Seq, &opType, &e.Op.Table, &e.Op.ID, &e.Op.ConflictKey, &e.Op.LocalID,
			&data, &e.Attempts, &st, &e.LastError, &millis); err != nil {
			return nil, fmt.Errorf("failed to scan queue row: %w", err)
		}
		e.Op.Type = common.OpType(opType)
		e.Status = Status(st)
		e.CreatedAt = time.UnixMilli(millis)
		if len(data) > 0 {
			e.Op.Data = data
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, seq int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE seq = ?`, seq); err != nil {
		return fmt.Errorf("failed to remove queue entry %d: %w", seq, err)
	}
	return nil
}

func (r *SQLiteRepository) RecordAttempt(ctx context.Context, seq int64, status Status, lastErr string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue SET attempts = attempts + 1, status = ?, last_error = ? WHERE seq = ?
	`, string(status), lastErr, seq)
	if err != nil {
		return fmt.Errorf("failed to update queue entry %d: %w", seq, err)
	}
	return nil
}

func (r *SQLiteRepository) Count(ctx context.Context, status Status) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE status = ?`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context, status Status) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE status = ?`, string(status))
	if err != nil {
		return 0, fmt.Errorf("failed to clear queue: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
