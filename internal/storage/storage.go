// Package storage implements every persistence interface of the audit
// service on PostgreSQL.
package storage

import (
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Storage handles all database operations for audit tasks, scraped jobs,
// positions and the broadcast marker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}
