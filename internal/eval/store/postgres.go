package store

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/internal/eval/store/migrations"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/postgres"
)

// NewPostgres connects with cfg and applies the schema.
func NewPostgres(cfg config.PostgresConfig) (ReportStore, error) {
	client, err := postgres.New(cfg)
	if err != nil {
		return nil, err
	}
	if err := migrate(client.DB, migrations.Postgres, "postgres/001_init.sql"); err != nil {
		client.Close()
		return nil, err
	}
	return &sqlStore{
		db:      client.DB,
		dialect: dialectPostgres,
		inTx:    client.InTx,
		close:   client.Close,
	}, nil
}

func migrate(db *sql.DB, fs embed.FS, name string) error {
	data, err := fs.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.Exec(string(data)); err != nil {
		return fmt.Errorf("exec migration %s: %w", name, err)
	}
	return nil
}
