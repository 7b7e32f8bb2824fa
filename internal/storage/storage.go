package storage

import (
	"io"

	"github.com/lineupkit/tacticboard/pkg/core"
)

// ErrNotFound is returned when a tactic id is not stored.
var ErrNotFound = core.ErrTacticNotFound

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// SaveTactic upserts t. An empty ID is assigned before writing.
	SaveTactic(t *core.Tactic) error
	LoadTactic(id string) (*core.Tactic, error)
	ListTactics() ([]core.TacticSummary, error)
	DeleteTactic(id string) error
}

// Exporter is an optional interface for backends that can stream a stored
// tactic as a file.
type Exporter interface {
	ExportTactic(id string, w io.Writer) error
}

// Importer is an optional interface for backends that can store a tactic
// read from a file.
type Importer interface {
	ImportTactic(r io.Reader) (*core.Tactic, error)
}
