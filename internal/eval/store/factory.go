package store

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/vector-space-retrieval/pkg/errors"
)

// Open returns the store selected by cfg.Store.Driver.
func Open(cfg *config.Config) (ReportStore, error) {
	switch cfg.Store.Driver {
	case "", "sqlite":
		return NewSQLite(cfg.Store.Path)
	case "postgres":
		s, err := NewPostgres(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		return s, nil
	case "none":
		return Nop{}, nil
	}
	return nil, fmt.Errorf("store driver %q: %w", cfg.Store.Driver, apperrors.ErrInvalidInput)
}
