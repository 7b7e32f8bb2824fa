// Package sqlitestorage implements the storage.Backend interface using a
// SQLite database, in memory by default, with periodic disk dumps via
// VACUUM INTO. It wraps the GORM backend via composition; the only
// SQLite-specific concerns are opening the database and the dump loop.
package sqlitestorage

import (
	"log/slog"
	"sync"
	"time"

	"github.com/lineupkit/tacticboard/internal/database"
	gormstorage "github.com/lineupkit/tacticboard/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	Path         string // empty for an in-memory database
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	manager  *database.Manager
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a new SQLite storage backend. The database is opened by Init.
func New(cfg Config, dbLog zerolog.Logger, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{Logger: logger}),
		manager: database.NewManager(dbLog),
		cfg:     cfg,
		log:     logger.With("component", "storage", "backend", "sqlite"),
	}
}

// Init opens the database, migrates the schema and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.manager.ConnectSqlite(b.cfg.Path); err != nil {
		return err
	}
	if err := b.manager.Setup(); err != nil {
		return err
	}
	b.Backend.Attach(b.manager.DB)

	b.stopChan = make(chan struct{})
	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the database.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	b.wg.Wait()
	b.stopChan = nil

	if b.cfg.DumpPath != "" {
		if err := b.manager.DumpMemoryToDisk(b.cfg.DumpPath); err != nil {
			b.log.Error("final dump failed", "path", b.cfg.DumpPath, "error", err)
		}
	}
	return b.manager.Close()
}

// Dump writes a point-in-time copy of the database to the dump path.
func (b *Backend) Dump() error {
	return b.manager.DumpMemoryToDisk(b.cfg.DumpPath)
}

// dumpLoop periodically dumps the database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.Error("error dumping to disk", "path", b.cfg.DumpPath, "error", err)
			} else {
				b.log.Debug("dumped to disk", "path", b.cfg.DumpPath, "duration", time.Since(start))
			}
		}
	}
}
