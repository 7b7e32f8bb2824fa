package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lineupkit/tacticboard/pkg/core"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(name string) core.Tactic {
	return core.Tactic{
		Name: name,
		Frames: []core.TacticFrame{{
			ID:              core.NewID(),
			PlayerPositions: map[int]core.FramePosition{2: {SlotID: 2, X: 0.2, Y: 0.8}},
			Strokes:         []core.DrawingStroke{},
			DurationMs:      800,
		}},
	}
}

func TestInMemory_SaveAndLoad(t *testing.T) {
	b := New(Config{}, zerolog.Nop(), nil)
	require.NoError(t, b.Init())
	defer b.Close()

	in := sample("Wide overload")
	require.NoError(t, b.SaveTactic(&in))

	out, err := b.LoadTactic(in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.Frames, out.Frames)
}

func TestClose_WritesFinalDump(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "tactics.db")
	b := New(Config{DumpPath: dump}, zerolog.Nop(), nil)
	require.NoError(t, b.Init())

	in := sample("Kept")
	require.NoError(t, b.SaveTactic(&in))
	require.NoError(t, b.Close())

	reopened := New(Config{Path: dump}, zerolog.Nop(), nil)
	require.NoError(t, reopened.Init())
	defer reopened.Close()

	out, err := reopened.LoadTactic(in.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kept", out.Name)
}

func TestDumpLoop_WritesPeriodically(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "periodic.db")
	b := New(Config{DumpPath: dump, DumpInterval: 20 * time.Millisecond}, zerolog.Nop(), nil)
	require.NoError(t, b.Init())
	defer b.Close()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(dump)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestClose_BeforeInit(t *testing.T) {
	b := New(Config{}, zerolog.Nop(), nil)
	assert.NoError(t, b.Close())
}
