package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

var testMigrations = fstest.MapFS{
	"00001_init.sql": &fstest.MapFile{Data: []byte(`-- +goose Up
CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL);

-- +goose Down
DROP TABLE widgets;
`)},
}

func TestOpen_AppliesMigrations(t *testing.T) {
	ctx := context.Background()

	db, err := Open(ctx, "sqlite", "file:dbx_migrate?mode=memory&cache=shared", testMigrations, "sqlite3")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.ExecContext(ctx, `INSERT INTO widgets(name) VALUES ('a')`)
	require.NoError(t, err)

	// running again is a no-op
	require.NoError(t, Migrate(ctx, db, testMigrations, "sqlite3"))
}

func TestMigrate_UnknownDialect(t *testing.T) {
	db := setupDB(t)
	err := Migrate(context.Background(), db, testMigrations, "oracle-ish")
	require.Error(t, err)
}

func TestMigrate_PropagatesGooseError(t *testing.T) {
	db := setupDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		require.Equal(t, ".", dir)
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	err := Migrate(context.Background(), db, testMigrations, "sqlite3")
	require.ErrorContains(t, err, "boom")
}

func TestOpen_BadDriver(t *testing.T) {
	_, err := Open(context.Background(), "nope", "x", testMigrations, "sqlite3")
	require.Error(t, err)
}
