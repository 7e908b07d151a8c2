package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/eval/store/migrations"
)

// NewSQLite opens (creating if needed) the database at path and applies the
// schema.
func NewSQLite(path string) (ReportStore, error) {
	if path == "" {
		path = "vsr-eval.db"
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// database/sql pools connections; sqlite serialises writers anyway.
	db.SetMaxOpenConns(1)

	if err := migrate(db, migrations.SQLite, "sqlite/001_init.sql"); err != nil {
		db.Close()
		return nil, err
	}
	return &sqlStore{
		db:      db,
		dialect: dialectSQLite,
		inTx: func(ctx context.Context, fn func(tx *sql.Tx) error) error {
			return inTx(ctx, db, fn)
		},
		close: db.Close,
	}, nil
}

func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
