// Package gormstorage implements the storage.Backend interface on top of
// GORM. The SQLite and Postgres backends embed it and only add connection
// handling.
package gormstorage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lineupkit/tacticboard/internal/model"
	"github.com/lineupkit/tacticboard/internal/model/convert"
	"github.com/lineupkit/tacticboard/internal/storage/tacticfile"
	"github.com/lineupkit/tacticboard/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotInitialized is returned by every call made before a database is attached.
var ErrNotInitialized = errors.New("gorm storage: database not attached")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
	Now    func() time.Time
}

// Backend implements storage.Backend using GORM.
type Backend struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new GORM storage backend. deps.DB may be nil and attached
// later with Attach.
func New(deps Dependencies) *Backend {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Backend{
		db:     deps.DB,
		logger: logger.With("component", "storage", "backend", "gorm"),
		now:    now,
	}
}

// Attach sets the database used by every later call. It is not safe to
// call concurrently with other methods.
func (b *Backend) Attach(db *gorm.DB) {
	b.db = db
}

// DB returns the attached database, or nil.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init migrates the schema on the attached database.
func (b *Backend) Init() error {
	if b.db == nil {
		return ErrNotInitialized
	}
	if err := b.db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close is a no-op; the owner of the connection closes it.
func (b *Backend) Close() error {
	return nil
}

// SaveTactic upserts the tactic header and replaces all of its frames and
// strokes in one transaction.
func (b *Backend) SaveTactic(t *core.Tactic) error {
	if b.db == nil {
		return ErrNotInitialized
	}

	if t.ID == "" {
		t.ID = core.NewID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = b.now()
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	m, err := convert.CoreToTactic(*t)
	if err != nil {
		return fmt.Errorf("failed to convert tactic %s: %w", t.ID, err)
	}
	frames := m.Frames
	m.Frames = nil

	err = b.db.Transaction(func(tx *gorm.DB) error {
		if err := deleteFrames(tx, m.ID); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(&m).Error; err != nil {
			return fmt.Errorf("failed to save tactic: %w", err)
		}
		if len(frames) > 0 {
			if err := tx.Create(&frames).Error; err != nil {
				return fmt.Errorf("failed to insert frames: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.logger.Debug("tactic saved", "tactic", t.ID, "frames", len(frames))
	return nil
}

// LoadTactic reads a tactic with its frames and strokes in stored order.
func (b *Backend) LoadTactic(id string) (*core.Tactic, error) {
	if b.db == nil {
		return nil, ErrNotInitialized
	}

	var m model.Tactic
	err := b.db.
		Preload("Frames", func(tx *gorm.DB) *gorm.DB { return tx.Order("frame_index ASC") }).
		Preload("Frames.Strokes", func(tx *gorm.DB) *gorm.DB { return tx.Order("ordinal ASC") }).
		First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", core.ErrTacticNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load tactic %s: %w", id, err)
	}

	t, err := convert.TacticToCore(m)
	if err != nil {
		return nil, fmt.Errorf("failed to convert tactic %s: %w", id, err)
	}
	return &t, nil
}

// ListTactics returns every stored tactic, most recently updated first.
func (b *Backend) ListTactics() ([]core.TacticSummary, error) {
	if b.db == nil {
		return nil, ErrNotInitialized
	}

	var tactics []model.Tactic
	if err := b.db.Order("updated_at DESC").Order("id ASC").Find(&tactics).Error; err != nil {
		return nil, fmt.Errorf("failed to list tactics: %w", err)
	}

	var counts []struct {
		TacticID string
		N        int
	}
	if err := b.db.Model(&model.Frame{}).
		Select("tactic_id, COUNT(*) AS n").
		Group("tactic_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count frames: %w", err)
	}
	byTactic := make(map[string]int, len(counts))
	for _, c := range counts {
		byTactic[c.TacticID] = c.N
	}

	out := make([]core.TacticSummary, 0, len(tactics))
	for _, t := range tactics {
		out = append(out, core.TacticSummary{
			ID:         t.ID,
			Name:       t.Name,
			FrameCount: byTactic[t.ID],
			UpdatedAt:  t.UpdatedAt.UTC(),
		})
	}
	return out, nil
}

// DeleteTactic removes a tactic with its frames and strokes.
func (b *Backend) DeleteTactic(id string) error {
	if b.db == nil {
		return ErrNotInitialized
	}

	return b.db.Transaction(func(tx *gorm.DB) error {
		if err := deleteFrames(tx, id); err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&model.Tactic{})
		if res.Error != nil {
			return fmt.Errorf("failed to delete tactic: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", core.ErrTacticNotFound, id)
		}
		return nil
	})
}

// ExportTactic writes a stored tactic to w as JSON.
func (b *Backend) ExportTactic(id string, w io.Writer) error {
	t, err := b.LoadTactic(id)
	if err != nil {
		return err
	}
	return tacticfile.Encode(w, *t, tacticfile.FormatJSON)
}

// ImportTactic stores a JSON tactic read from r.
func (b *Backend) ImportTactic(r io.Reader) (*core.Tactic, error) {
	t, err := tacticfile.Decode(r, tacticfile.FormatJSON)
	if err != nil {
		return nil, err
	}
	if err := b.SaveTactic(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func deleteFrames(tx *gorm.DB, tacticID string) error {
	frameIDs := tx.Model(&model.Frame{}).Select("id").Where("tactic_id = ?", tacticID)
	if err := tx.Where("frame_id IN (?)", frameIDs).Delete(&model.Stroke{}).Error; err != nil {
		return fmt.Errorf("failed to delete strokes: %w", err)
	}
	if err := tx.Where("tactic_id = ?", tacticID).Delete(&model.Frame{}).Error; err != nil {
		return fmt.Errorf("failed to delete frames: %w", err)
	}
	return nil
}
