package storage

import (
	"fmt"
	"log/slog"

	"github.com/lineupkit/tacticboard/internal/config"
	"github.com/lineupkit/tacticboard/internal/storage/memory"
	"github.com/lineupkit/tacticboard/internal/storage/postgres"
	sqlitestorage "github.com/lineupkit/tacticboard/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// Dependencies carries the loggers handed to the backends.
type Dependencies struct {
	Logger   *slog.Logger
	DBLogger zerolog.Logger
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case "postgres":
		return postgres.New(cfg.Postgres, deps.DBLogger, logger), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			Path:         cfg.SQLite.Path,
			DumpPath:     cfg.SQLite.DumpPath,
			DumpInterval: cfg.SQLite.DumpInterval,
		}, deps.DBLogger, logger), nil
	case "memory", "":
		return memory.New(cfg.Memory, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
