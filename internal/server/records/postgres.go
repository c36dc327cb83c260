package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/dbx"
)

const uniqueViolation = "23505"

// DB is satisfied by *sql.DB.
type DB interface {
	dbx.DBTX
	dbx.TxBeginner
	PingContext(ctx context.Context) error
}

// PostgresRepository implements Repository over the records table.
type PostgresRepository struct {
	db DB
}

func NewPostgresRepository(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner, table string, extra ...any) (Record, error) {
	rec := Record{Table: table}
	var key sql.NullString
	var data []byte
	dest := append([]any{&rec.ID, &key, &data, &rec.CreatedAt, &rec.UpdatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return Record{}, err
	}
	rec.ConflictKey = key.String
	rec.Data = data
	return rec, nil
}

func mapError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("error performing sql request: %w", err)
}

func (r *PostgresRepository) List(ctx context.Context, table string) ([]Record, error) {
	query := `SELECT id, conflict_key, data, created_at, updated_at FROM records
		WHERE tbl = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows, table)
		if err != nil {
			return nil, mapError(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rec Record) (Record, error) {
	query := `INSERT INTO records (tbl, id, conflict_key, data, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4::jsonb, $5, $5)`

	if _, err := r.db.ExecContext(ctx, query, rec.Table, rec.ID, rec.ConflictKey, string(rec.Data), rec.CreatedAt); err != nil {
		return Record{}, mapError(err)
	}
	rec.UpdatedAt = rec.CreatedAt
	return rec, nil
}

// Upsert relies on xmax being zero only for freshly inserted tuples.
func (r *PostgresRepository) Upsert(ctx context.Context, rec Record) (Record, bool, error) {
	query := `INSERT INTO records (tbl, id, conflict_key, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $5)
		ON CONFLICT (tbl, conflict_key)
		DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
		RETURNING id, conflict_key, data, created_at, updated_at, (xmax = 0) AS inserted`

	var inserted bool
	row := r.db.QueryRowContext(ctx, query, rec.Table, rec.ID, rec.ConflictKey, string(rec.Data), rec.CreatedAt)
	out, err := scanRecord(row, rec.Table, &inserted)
	if err != nil {
		return Record{}, false, mapError(err)
	}
	return out, inserted, nil
}

func (r *PostgresRepository) Update(ctx context.Context, table, id string, fn func(*Record) error) (Record, error) {
	var out Record
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		query := `SELECT id, conflict_key, data, created_at, updated_at FROM records
			WHERE tbl = $1 AND id = $2 FOR UPDATE`

		rec, err := scanRecord(tx.QueryRowContext(ctx, query, table, id), table)
		if err != nil {
			return mapError(err)
		}
		if err := fn(&rec); err != nil {
			return err
		}

		update := `UPDATE records SET conflict_key = NULLIF($3, ''), data = $4::jsonb, updated_at = $5
			WHERE tbl = $1 AND id = $2`
		if _, err := tx.ExecContext(ctx, update, table, id, rec.ConflictKey, string(rec.Data), rec.UpdatedAt); err != nil {
			return mapError(err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return out, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, table, id string) (Record, error) {
	query := `DELETE FROM records WHERE tbl = $1 AND id = $2
		RETURNING id, conflict_key, data, created_at, updated_at`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, table, id), table)
	if err != nil {
		return Record{}, mapError(err)
	}
	return rec, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
