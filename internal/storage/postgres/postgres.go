// Package postgres implements the storage.Backend interface using
// GORM/PostgreSQL. It wraps the shared GORM backend and owns the connection.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/lineupkit/tacticboard/internal/config"
	"github.com/lineupkit/tacticboard/internal/database"
	gormstorage "github.com/lineupkit/tacticboard/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Backend implements storage.Backend using GORM/PostgreSQL.
type Backend struct {
	*gormstorage.Backend
	manager *database.Manager
	cfg     config.PostgresConfig
}

// New creates a new Postgres storage backend. The connection is opened by Init.
func New(cfg config.PostgresConfig, dbLog zerolog.Logger, logger *slog.Logger) *Backend {
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{Logger: logger}),
		manager: database.NewManager(dbLog),
		cfg:     cfg,
	}
}

// Init connects to Postgres and migrates the schema.
func (b *Backend) Init() error {
	if err := b.manager.ConnectPostgres(b.cfg); err != nil {
		return err
	}
	if err := b.manager.Setup(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.Backend.Attach(b.manager.DB)
	return nil
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	return b.manager.Close()
}
