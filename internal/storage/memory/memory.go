// Package memory implements the storage.Backend interface with an in-memory
// map. When an output directory is configured every saved tactic is also
// written there as a file, and Init loads the files found there.
package memory

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/lineupkit/tacticboard/internal/config"
	"github.com/lineupkit/tacticboard/internal/storage/tacticfile"
	"github.com/lineupkit/tacticboard/pkg/core"
)

// Backend stores tactics in memory and mirrors them to files
type Backend struct {
	cfg    config.MemoryConfig
	format tacticfile.Format
	logger *slog.Logger
	now    func() time.Time

	tactics map[string]core.Tactic
	files   map[string]string // tactic id -> file written for it
	mu      sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		cfg:     cfg,
		logger:  logger.With("component", "storage", "backend", "memory"),
		now:     time.Now,
		tactics: make(map[string]core.Tactic),
		files:   make(map[string]string),
	}
}

// Init resolves the file format and loads every tactic file found in the
// output directory. Unreadable files are logged and skipped.
func (b *Backend) Init() error {
	format, err := tacticfile.ParseFormat(b.cfg.Format, b.cfg.CompressOutput)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.format = format

	if b.cfg.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	entries, err := os.ReadDir(b.cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(b.cfg.OutputDir, entry.Name())
		if _, err := tacticfile.FormatFromPath(path); err != nil {
			continue
		}
		t, err := tacticfile.ReadFile(path)
		if err != nil {
			b.logger.Warn("skipping unreadable tactic file", "path", path, "error", err)
			continue
		}
		if t.ID == "" {
			b.logger.Warn("skipping tactic file without id", "path", path)
			continue
		}
		b.tactics[t.ID] = t
		b.files[t.ID] = path
	}

	b.logger.Info("memory storage ready", "dir", b.cfg.OutputDir, "tactics", len(b.tactics), "format", string(b.format))
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// SaveTactic stores a copy of t and writes its file.
func (b *Backend) SaveTactic(t *core.Tactic) error {
	if t.ID == "" {
		t.ID = core.NewID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = b.now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	stored := t.Clone()
	if b.cfg.OutputDir != "" {
		if err := b.writeFile(stored); err != nil {
			return err
		}
	}
	b.tactics[stored.ID] = stored
	return nil
}

// LoadTactic returns a copy of the stored tactic.
func (b *Backend) LoadTactic(id string) (*core.Tactic, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, ok := b.tactics[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrTacticNotFound, id)
	}
	out := t.Clone()
	return &out, nil
}

// ListTactics returns every stored tactic, most recently updated first.
func (b *Backend) ListTactics() ([]core.TacticSummary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.TacticSummary, 0, len(b.tactics))
	for _, t := range b.tactics {
		out = append(out, t.Summary())
	}
	slices.SortFunc(out, func(x, y core.TacticSummary) int {
		if c := y.UpdatedAt.Compare(x.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return out, nil
}

// DeleteTactic forgets a tactic and removes its file.
func (b *Backend) DeleteTactic(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.tactics[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrTacticNotFound, id)
	}
	if path, ok := b.files[id]; ok {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove tactic file: %w", err)
		}
		delete(b.files, id)
	}
	delete(b.tactics, id)
	return nil
}

// ExportTactic writes a stored tactic to w in the configured format.
func (b *Backend) ExportTactic(id string, w io.Writer) error {
	t, err := b.LoadTactic(id)
	if err != nil {
		return err
	}
	return tacticfile.Encode(w, *t, b.fileFormat())
}

// ImportTactic stores a tactic read from r in the configured format.
func (b *Backend) ImportTactic(r io.Reader) (*core.Tactic, error) {
	t, err := tacticfile.Decode(r, b.fileFormat())
	if err != nil {
		return nil, err
	}
	if err := b.SaveTactic(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// FilePath returns the file written for a tactic, if any.
func (b *Backend) FilePath(id string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	path, ok := b.files[id]
	return path, ok
}

func (b *Backend) fileFormat() tacticfile.Format {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.format == "" {
		return tacticfile.FormatJSON
	}
	return b.format
}

// writeFile must be called with b.mu held.
func (b *Backend) writeFile(t core.Tactic) error {
	format := b.format
	if format == "" {
		format = tacticfile.FormatJSON
	}
	path := filepath.Join(b.cfg.OutputDir, t.ID+format.Extension())
	if err := tacticfile.WriteFile(path, t); err != nil {
		return err
	}
	if old, ok := b.files[t.ID]; ok && old != path {
		if err := os.Remove(old); err != nil && !errors.Is(err, os.ErrNotExist) {
			b.logger.Warn("failed to remove previous tactic file", "path", old, "error", err)
		}
	}
	b.files[t.ID] = path
	b.logger.Debug("tactic written", "tactic", t.ID, "path", path)
	return nil
}
