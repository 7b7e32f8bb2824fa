package timeline

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/lineupkit/tacticboard/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

var fourFourTwo = []core.SeedPosition{
	{SlotID: 1, X: 0.5, Y: 0.92},
	{SlotID: 2, X: 0.2, Y: 0.7},
	{SlotID: 3, X: 0.8, Y: 0.7},
	{SlotID: 9, X: 0.5, Y: 0.2},
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New(Options{Now: func() time.Time { return fixedNow }, MaxHistory: 10})
	require.True(t, s.CreateNewTactic("Press", fourFourTwo))
	return s
}

// withFrames builds a store with n committed frames, moving slot 9 further
// up the pitch for each one.
func withFrames(t *testing.T, n int) *Store {
	t.Helper()
	s := newStore(t)
	for i := 0; i < n; i++ {
		require.True(t, s.MovePlayer(9, 0.5, 0.2+float64(i)*0.1))
		require.True(t, s.AddFrame())
	}
	return s
}

func assertIndexed(t *testing.T, st State) {
	t.Helper()
	for i, f := range st.Tactic.Frames {
		assert.Equal(t, i, f.Index, "frame %d", i)
	}
}

func strokeIDs(strokes []core.DrawingStroke) []string {
	out := make([]string, len(strokes))
	for i, s := range strokes {
		out[i] = s.ID
	}
	return out
}

func penAt(id string, x, y float64) core.DrawingStroke {
	return core.DrawingStroke{
		ID:          id,
		Tool:        core.ToolPen,
		Points:      []core.Point{{X: x, Y: y}, {X: x + 0.05, Y: y}},
		Color:       "#ff0000",
		StrokeWidth: 4,
		CreatedAt:   fixedNow,
	}
}

func TestCreateNewTactic(t *testing.T) {
	s := New(Options{Now: func() time.Time { return fixedNow }})
	require.True(t, s.CreateNewTactic("  Low block ", []core.SeedPosition{{SlotID: 4, X: 1.3, Y: -0.2}}))

	st := s.State()
	assert.Equal(t, "Low block", st.Tactic.Name)
	assert.Empty(t, st.Tactic.Frames)
	require.True(t, st.IsPreview())
	pm := st.Mode.(PreviewMode)
	assert.Equal(t, core.FramePosition{SlotID: 4, X: core.PlayerMax, Y: core.PlayerMin}, pm.Positions[4])
	assert.Equal(t, core.CenteredBall(), pm.Ball)
	assert.Equal(t, fixedNow, st.Tactic.CreatedAt)
}

func TestAddFrame_SnapshotsPreviewAndStaysInPreview(t *testing.T) {
	s := newStore(t)
	require.True(t, s.MoveBall(0.3, 0.4))
	require.True(t, s.AddStroke(penAt("scratch", 0.1, 0.1)))
	before := s.State()
	pm := before.Mode.(PreviewMode)

	require.True(t, s.AddFrame())
	st := s.State()

	require.Len(t, st.Tactic.Frames, len(before.Tactic.Frames)+1)
	f := st.Tactic.Frames[0]
	assert.Equal(t, pm.Positions, f.PlayerPositions)
	require.NotNil(t, f.Ball)
	assert.Equal(t, pm.Ball, *f.Ball)
	assert.Empty(t, f.Strokes)
	assert.Equal(t, core.DefaultFrameDurationMs, f.DurationMs)
	assert.True(t, st.IsPreview())
	assert.Equal(t, pm, st.Mode.(PreviewMode), "preview carries forward")

	// Committed data is not aliased with the preview.
	require.True(t, s.MovePlayer(9, 0.6, 0.6))
	assert.Equal(t, 0.2, s.State().Tactic.Frames[0].PlayerPositions[9].Y)
}

func TestAddFrame_RefusedInEditMode(t *testing.T) {
	s := withFrames(t, 1)
	require.True(t, s.SelectFrame(0))
	before := s.State()

	assert.False(t, s.AddFrame())
	assert.Equal(t, before, s.State())
	assert.False(t, s.State().CanAddFrame())
}

func TestStructuralOps_KeepIndicesContiguous(t *testing.T) {
	s := withFrames(t, 3)
	steps := []func() bool{
		func() bool { return s.DuplicateFrame(1) },
		func() bool { return s.DeleteFrame(0) },
		func() bool { return s.EnterPreviewMode() },
		func() bool { return s.AddFrame() },
		func() bool { return s.DeleteFrame(2) },
		func() bool { return s.DuplicateFrame(0) },
		func() bool { return s.MoveFrame(0, 3) },
		func() bool { return s.DeleteFrame(3) },
	}
	for i, step := range steps {
		require.True(t, step(), "step %d", i)
		assertIndexed(t, s.State())
	}
}

func TestDeleteFrame_NeverBelowOne(t *testing.T) {
	s := withFrames(t, 1)
	before := s.State()

	assert.False(t, s.State().CanDelete())
	assert.False(t, s.DeleteFrame(0))
	assert.Equal(t, before, s.State())
}

func TestDeleteFrame_SelectsClampedIndex(t *testing.T) {
	s := withFrames(t, 3)
	require.True(t, s.SelectFrame(2))
	second := s.State().Tactic.Frames[1].ID

	require.True(t, s.DeleteFrame(2))
	st := s.State()
	assert.Equal(t, EditMode{FrameIndex: 1}, st.Mode)
	assert.Equal(t, second, st.Tactic.Frames[1].ID)

	require.True(t, s.DeleteFrame(0))
	assert.Equal(t, EditMode{FrameIndex: 0}, s.State().Mode)

	assert.False(t, s.DeleteFrame(5))
}

func TestDuplicateFrame_EntersEditWithFreshIDs(t *testing.T) {
	s := withFrames(t, 2)
	require.True(t, s.SelectFrame(0))
	require.True(t, s.AddStroke(penAt("orig", 0.3, 0.3)))
	require.True(t, s.EnterPreviewMode())

	require.True(t, s.DuplicateFrame(0))
	st := s.State()
	require.Len(t, st.Tactic.Frames, 3)
	assert.Equal(t, EditMode{FrameIndex: 2}, st.Mode)
	assert.Equal(t, 0, st.History.Len())

	src, dup := st.Tactic.Frames[0], st.Tactic.Frames[2]
	assert.NotEqual(t, src.ID, dup.ID)
	require.Len(t, dup.Strokes, 1)
	assert.NotEqual(t, src.Strokes[0].ID, dup.Strokes[0].ID)
	assert.Equal(t, src.Strokes[0].Points, dup.Strokes[0].Points)
	assert.Equal(t, src.PlayerPositions, dup.PlayerPositions)

	// Editing the duplicate leaves the source untouched.
	require.True(t, s.MovePlayer(9, 0.9, 0.9))
	assert.Equal(t, src.PlayerPositions[9], s.State().Tactic.Frames[0].PlayerPositions[9])
}

func TestRouting_SameGestureDifferentTarget(t *testing.T) {
	s := withFrames(t, 2)

	// Preview: the preview configuration changes, frames do not.
	framesBefore := s.State().Tactic.Frames
	require.True(t, s.MovePlayer(2, 0.3, 0.3))
	assert.Equal(t, framesBefore, s.State().Tactic.Frames)
	assert.Equal(t, 0.3, s.State().Mode.(PreviewMode).Positions[2].X)

	// Edit: the selected frame changes, the preview is gone.
	require.True(t, s.SelectFrame(1))
	require.True(t, s.MovePlayer(2, 0.4, 0.6))
	st := s.State()
	assert.Equal(t, core.FramePosition{SlotID: 2, X: 0.4, Y: 0.6}, st.Tactic.Frames[1].PlayerPositions[2])
	assert.Equal(t, framesBefore[0], st.Tactic.Frames[0])

	require.True(t, s.MoveBall(1.5, 0.5))
	assert.Equal(t, core.BallMax, s.State().Tactic.Frames[1].Ball.X)

	require.True(t, s.SetBallVisible(false))
	assert.False(t, s.State().Tactic.Frames[1].Ball.Visible)
	assert.False(t, s.SetBallVisible(false), "no change")
}

func TestMovePlayer_UnknownSlotIgnored(t *testing.T) {
	s := newStore(t)
	before := s.State()
	assert.False(t, s.MovePlayer(42, 0.5, 0.5))
	assert.Equal(t, before, s.State())
}

func TestEdits_NonFiniteCoordinatesStayInBand(t *testing.T) {
	s := withFrames(t, 2)
	require.True(t, s.SelectFrame(1))

	require.True(t, s.MovePlayer(9, math.NaN(), 0.5))
	require.True(t, s.MovePlayer(2, math.Inf(1), math.Inf(-1)))
	require.True(t, s.MoveBall(math.NaN(), math.Inf(1)))
	require.True(t, s.AddStroke(core.DrawingStroke{
		ID:     "nan",
		Tool:   core.ToolPen,
		Points: []core.Point{{X: math.NaN(), Y: 0.4}, {X: 0.6, Y: math.Inf(1)}},
	}))

	f := s.State().Tactic.Frames[1]
	assert.Equal(t, core.FramePosition{SlotID: 9, X: 0.5, Y: 0.5}, f.PlayerPositions[9])
	assert.Equal(t, core.FramePosition{SlotID: 2, X: core.PlayerMax, Y: core.PlayerMin}, f.PlayerPositions[2])
	require.NotNil(t, f.Ball)
	assert.Equal(t, 0.5, f.Ball.X)
	assert.Equal(t, core.BallMax, f.Ball.Y)
	assert.Equal(t, []core.Point{{X: 0.5, Y: 0.4}, {X: 0.6, Y: 1}}, f.Strokes[0].Points)

	exported := s.Export()
	assert.NoError(t, exported.Check())
	_, err := json.Marshal(exported)
	assert.NoError(t, err)
}

func TestStrokes_AddUndoRedoReproducesList(t *testing.T) {
	s := withFrames(t, 2)
	require.True(t, s.SelectFrame(1))
	require.True(t, s.AddStroke(penAt("a", 0.1, 0.1)))
	require.True(t, s.AddStroke(penAt("b", 0.5, 0.5)))
	before := s.State().Tactic.Frames[1].Strokes

	require.True(t, s.Undo())
	assert.Equal(t, []string{"a"}, strokeIDs(s.State().Tactic.Frames[1].Strokes))
	require.True(t, s.Redo())
	assert.Equal(t, before, s.State().Tactic.Frames[1].Strokes)
}

func TestStrokes_SelectionChangeClearsHistory(t *testing.T) {
	s := withFrames(t, 2)
	require.True(t, s.SelectFrame(0))
	require.True(t, s.AddStroke(penAt("a", 0.1, 0.1)))
	require.True(t, s.AddStroke(penAt("b", 0.2, 0.2)))
	require.True(t, s.Undo())
	require.True(t, s.State().CanRedo())
	require.True(t, s.State().CanUndo())

	require.True(t, s.SelectFrame(1))
	assert.False(t, s.State().CanRedo())
	assert.False(t, s.Redo())

	// Re-selecting the same frame also clears it.
	require.True(t, s.SelectFrame(1))
	require.True(t, s.AddStroke(penAt("c", 0.3, 0.3)))
	require.True(t, s.Undo())
	require.True(t, s.SelectFrame(1))
	assert.False(t, s.State().CanRedo())
}

func TestStrokes_EraseAndClearAreRedoable(t *testing.T) {
	s := withFrames(t, 1)
	require.True(t, s.SelectFrame(0))
	require.True(t, s.AddStroke(penAt("a", 0.1, 0.1)))
	require.True(t, s.AddStroke(penAt("b", 0.5, 0.5)))
	require.True(t, s.AddStroke(penAt("c", 0.8, 0.8)))

	require.True(t, s.EraseStroke("b"))
	assert.Equal(t, []string{"a", "c"}, strokeIDs(s.State().Tactic.Frames[0].Strokes))
	require.True(t, s.ClearStrokes())
	assert.Empty(t, s.State().Tactic.Frames[0].Strokes)

	require.True(t, s.Redo())
	assert.Equal(t, []string{"a", "c"}, strokeIDs(s.State().Tactic.Frames[0].Strokes))
	require.True(t, s.Redo())
	assert.Equal(t, []string{"a", "b", "c"}, strokeIDs(s.State().Tactic.Frames[0].Strokes))
}

func TestAddStroke_EraserToolErases(t *testing.T) {
	s := withFrames(t, 1)
	require.True(t, s.SelectFrame(0))
	require.True(t, s.AddStroke(penAt("a", 0.1, 0.1)))
	require.True(t, s.AddStroke(penAt("b", 0.5, 0.5)))

	require.True(t, s.AddStroke(core.DrawingStroke{
		Tool:   core.ToolEraser,
		Points: []core.Point{{X: 0.52, Y: 0.4}, {X: 0.52, Y: 0.6}},
	}))
	strokes := s.State().Tactic.Frames[0].Strokes
	assert.Equal(t, []string{"a"}, strokeIDs(strokes))
	for _, st := range strokes {
		assert.NotEqual(t, core.ToolEraser, st.Tool)
	}
}

func TestEditsRefusedWhilePlaying(t *testing.T) {
	s := withFrames(t, 2)
	require.True(t, s.Update(func(st State) (State, bool) {
		st.Playback.IsPlaying = true
		return st, true
	}))
	before := s.State()

	assert.False(t, s.SelectFrame(0))
	assert.False(t, s.EnterPreviewMode())
	assert.False(t, s.AddFrame())
	assert.False(t, s.DuplicateFrame(0))
	assert.False(t, s.DeleteFrame(0))
	assert.False(t, s.MovePlayer(9, 0.1, 0.1))
	assert.False(t, s.AddStroke(penAt("x", 0.1, 0.1)))
	assert.False(t, s.SetFrameDuration(0, 300))
	assert.False(t, s.SeekFrame(1))
	assert.Equal(t, before, s.State())

	assert.True(t, s.SetSpeed(2), "speed may change during playback")
}

func TestEnterPreviewMode_SeedsFromLastFrame(t *testing.T) {
	s := withFrames(t, 3)
	require.True(t, s.SelectFrame(2))
	require.True(t, s.MoveBall(0.7, 0.7))
	require.True(t, s.SelectFrame(0))

	require.True(t, s.EnterPreviewMode())
	st := s.State()
	pm := st.Mode.(PreviewMode)
	last := st.Tactic.Frames[2]
	assert.Equal(t, last.PlayerPositions, pm.Positions)
	assert.Equal(t, *last.Ball, pm.Ball)
	assert.Equal(t, 0, st.History.Len())
}

func TestEnterPreviewMode_NoFramesKeepsPreview(t *testing.T) {
	s := newStore(t)
	require.True(t, s.MovePlayer(1, 0.4, 0.4))
	want := s.State().Mode

	require.True(t, s.EnterPreviewMode())
	assert.Equal(t, want, s.State().Mode)
}

func TestSetFrameDuration_Clamps(t *testing.T) {
	s := withFrames(t, 2)
	tests := []struct {
		in, want int
	}{
		{in: 500, want: 500},
		{in: 20, want: core.MinFrameDurationMs},
		{in: 60000, want: core.MaxFrameDurationMs},
		{in: -3, want: core.DefaultFrameDurationMs},
	}
	for _, tt := range tests {
		s.SetFrameDuration(1, tt.in)
		assert.Equal(t, tt.want, s.State().Tactic.Frames[1].DurationMs, "in=%d", tt.in)
	}
}

func TestMoveFrame_SelectionFollows(t *testing.T) {
	s := withFrames(t, 3)
	require.True(t, s.SelectFrame(0))
	id := s.State().Tactic.Frames[0].ID

	require.True(t, s.MoveFrame(0, 2))
	st := s.State()
	assert.Equal(t, id, st.Tactic.Frames[2].ID)
	assert.Equal(t, EditMode{FrameIndex: 2}, st.Mode)
	assertIndexed(t, st)

	assert.False(t, s.MoveFrame(1, 1))
	assert.False(t, s.MoveFrame(0, 3))
}

func TestSetSpeed_Snaps(t *testing.T) {
	s := newStore(t)
	require.True(t, s.SetSpeed(1.8))
	assert.Equal(t, 2.0, s.State().Playback.Speed)
	require.True(t, s.SetSpeed(0.1))
	assert.Equal(t, 0.5, s.State().Playback.Speed)
	assert.False(t, s.SetSpeed(0.6))
}

func TestRename(t *testing.T) {
	s := newStore(t)
	assert.False(t, s.Rename("   "))
	assert.True(t, s.Rename("Counter press"))
	assert.False(t, s.Rename("Counter press"))
	assert.Equal(t, "Counter press", s.State().Tactic.Name)
}

func TestLoadExport_RoundTrip(t *testing.T) {
	src := withFrames(t, 3)
	require.True(t, src.SelectFrame(1))
	require.True(t, src.AddStroke(penAt("a", 0.2, 0.2)))
	require.True(t, src.SetBallVisible(false))
	require.True(t, src.SetFrameDuration(2, 450))
	exported := src.Export()

	dst := New(Options{})
	require.True(t, dst.Load(exported))
	st := dst.State()
	assert.Equal(t, exported, st.Tactic)
	assert.Equal(t, EditMode{FrameIndex: 0}, st.Mode)
	assert.Equal(t, exported, dst.Export())

	// The loaded session does not alias the caller's value.
	exported.Frames[0].PlayerPositions[9] = core.FramePosition{SlotID: 9}
	assert.NotEqual(t, exported.Frames[0].PlayerPositions[9], dst.State().Tactic.Frames[0].PlayerPositions[9])
}

func TestLoad_EmptyTacticEntersPreview(t *testing.T) {
	s := New(Options{})
	require.True(t, s.Load(core.Tactic{ID: "t1", Name: "Empty"}))
	assert.True(t, s.State().IsPreview())
}

func TestLoad_ReindexesFrames(t *testing.T) {
	s := New(Options{})
	require.True(t, s.Load(core.Tactic{Frames: []core.TacticFrame{
		{ID: "a", Index: 4, DurationMs: 1000},
		{ID: "b", Index: 9, DurationMs: 1000},
	}}))
	assertIndexed(t, s.State())
}

func TestSubscribe_ReceivesSnapshots(t *testing.T) {
	s := newStore(t)
	ch := s.Subscribe(4)
	var seen []uint64
	cancel := s.Watch(func(st State) { seen = append(seen, st.Version) })

	require.True(t, s.AddFrame())
	assert.False(t, s.DeleteFrame(0))

	select {
	case st := <-ch:
		assert.Len(t, st.Tactic.Frames, 1)
	case <-time.After(time.Second):
		t.Fatal("no snapshot published")
	}
	assert.Equal(t, []uint64{s.State().Version}, seen)

	cancel()
	s.Unsubscribe(ch)
	require.True(t, s.Rename("x"))
	_, open := <-ch
	assert.False(t, open)
	assert.Len(t, seen, 1)
}

func TestSubscribe_ConcurrentUnsubscribeDuringUpdates(t *testing.T) {
	s := newStore(t)
	stop := make(chan struct{})
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}
				s.Rename(fmt.Sprintf("w%d-%d", w, i))
			}
		}(w)
	}

	for i := 0; i < 5000; i++ {
		ch := s.Subscribe(1)
		s.Unsubscribe(ch)
		for range ch {
		}
	}
	close(stop)
	wg.Wait()

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	assert.Empty(t, s.subscribers)
}

func TestWatch_MayReadStateAndUnwatch(t *testing.T) {
	s := newStore(t)
	var seen []string
	var cancel func()
	cancel = s.Watch(func(st State) {
		seen = append(seen, s.State().Tactic.Name)
		assert.Equal(t, st.Version, s.State().Version)
		cancel()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.True(t, s.Rename("first"))
		assert.True(t, s.Rename("second"))
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher deadlocked the store")
	}
	assert.Equal(t, []string{"first"}, seen)
}

func TestSubscribe_FullBufferDrops(t *testing.T) {
	s := newStore(t)
	ch := s.Subscribe(1)
	require.True(t, s.Rename("one"))
	require.True(t, s.Rename("two"))

	st := <-ch
	assert.Equal(t, "one", st.Tactic.Name)
	assert.Equal(t, "two", s.State().Tactic.Name)
}

func TestCurrent(t *testing.T) {
	s := withFrames(t, 2)
	view := s.State().Current()
	assert.Equal(t, -1, view.SourceIndex)

	require.True(t, s.SelectFrame(1))
	view = s.State().Current()
	assert.Equal(t, 1, view.SourceIndex)
	assert.Equal(t, s.State().Tactic.Frames[1].PlayerPositions, view.Players)
}

func TestSnapSpeed(t *testing.T) {
	assert.Equal(t, 0.5, SnapSpeed(0))
	assert.Equal(t, 1.0, SnapSpeed(1.2))
	assert.Equal(t, 2.0, SnapSpeed(10))
}
