package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lineupkit/tacticboard/internal/timeline"
	"github.com/lineupkit/tacticboard/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

func frame(durationMs int, x, y float64, ball *core.BallPosition, strokes ...core.DrawingStroke) core.TacticFrame {
	return core.TacticFrame{
		ID: core.NewID(),
		PlayerPositions: map[int]core.FramePosition{
			7:  {SlotID: 7, X: x, Y: y},
			10: {SlotID: 10, X: 0.5, Y: 0.5},
		},
		Ball:       ball,
		Strokes:    strokes,
		DurationMs: durationMs,
	}
}

func loadedStore(t *testing.T, frames ...core.TacticFrame) *timeline.Store {
	t.Helper()
	s := timeline.New(timeline.Options{})
	require.True(t, s.Load(core.Tactic{ID: "tac-1", Name: "Overlap", Frames: frames}))
	return s
}

func newScheduler(t *testing.T, s *timeline.Store, reporters ...Reporter) (*Scheduler, *ManualClock) {
	t.Helper()
	clock := NewManualClock(epoch)
	sch, err := New(s, Options{Clock: clock, TickInterval: 16 * time.Millisecond, Reporters: reporters})
	require.NoError(t, err)
	t.Cleanup(func() { sch.Stop() })
	return sch, clock
}

func TestLerp_Endpoints(t *testing.T) {
	cases := [][2]float64{{0.05, 0.95}, {0.3, 0.3}, {0.9, 0.1}, {0.123456, 0.654321}}
	for _, c := range cases {
		assert.InDelta(t, c[0], Lerp(c[0], c[1], 0), 1e-12)
		assert.InDelta(t, c[1], Lerp(c[0], c[1], 1), 1e-12)
	}
	assert.InDelta(t, 0.5, Lerp(0, 1, 0.5), 1e-12)
}

func TestInterpolate_Endpoints(t *testing.T) {
	b1 := core.NewBallPosition(0.2, 0.3, true)
	b2 := core.NewBallPosition(0.8, 0.7, true)
	cur := frame(1000, 0.1, 0.2, &b1)
	next := frame(1000, 0.9, 0.6, &b2)

	at0 := Interpolate(cur, next, 0)
	at1 := Interpolate(cur, next, 1)
	for slot, p := range cur.PlayerPositions {
		assert.InDelta(t, p.X, at0.Players[slot].X, 1e-12)
		assert.InDelta(t, p.Y, at0.Players[slot].Y, 1e-12)
		assert.InDelta(t, next.PlayerPositions[slot].X, at1.Players[slot].X, 1e-12)
		assert.InDelta(t, next.PlayerPositions[slot].Y, at1.Players[slot].Y, 1e-12)
	}
	assert.InDelta(t, b1.X, at0.Ball.X, 1e-12)
	assert.InDelta(t, b2.X, at1.Ball.X, 1e-12)
	assert.InDelta(t, b2.Y, at1.Ball.Y, 1e-12)
}

func TestInterpolate_MissingSlotKeepsCurrent(t *testing.T) {
	cur := frame(1000, 0.1, 0.2, nil)
	next := frame(1000, 0.9, 0.6, nil)
	delete(next.PlayerPositions, 7)

	view := Interpolate(cur, next, 0.5)
	assert.Equal(t, cur.PlayerPositions[7], view.Players[7])
	assert.Nil(t, view.Ball)
}

func TestInterpolate_BallHiddenWhenEitherEndHides(t *testing.T) {
	shown := core.NewBallPosition(0.2, 0.2, true)
	hidden := core.NewBallPosition(0.8, 0.8, false)
	stroke := core.NewStroke(core.ToolArrow, []core.Point{{X: 0.1, Y: 0.1}, {X: 0.4, Y: 0.4}}, "#00ff00", 3, epoch)

	view := Interpolate(frame(1000, 0.1, 0.1, &shown, stroke), frame(1000, 0.2, 0.2, &hidden), 0.25)
	require.NotNil(t, view.Ball)
	assert.False(t, view.Ball.Visible)
	assert.InDelta(t, 0.35, view.Ball.X, 1e-12)
	assert.Equal(t, []core.DrawingStroke{stroke}, view.Strokes)

	view = Interpolate(frame(1000, 0.1, 0.1, &shown), frame(1000, 0.2, 0.2, nil), 0.5)
	assert.Equal(t, shown, *view.Ball)
}

func TestAdvance_DoesNotTouchFrames(t *testing.T) {
	s := loadedStore(t, frame(1000, 0.1, 0.1, nil), frame(1000, 0.9, 0.9, nil))
	st := s.State()
	st.Playback.IsPlaying = true
	before := st.Tactic.Clone()

	next := Advance(st, 500)
	assert.Equal(t, before, next.Tactic)
	assert.InDelta(t, 0.5, next.Playback.Progress, 1e-12)
	require.NotNil(t, next.View)
	assert.InDelta(t, 0.5, next.View.Players[7].X, 1e-12)
}

func TestAdvance_SpeedScalesDuration(t *testing.T) {
	s := loadedStore(t, frame(1000, 0.1, 0.1, nil), frame(1000, 0.9, 0.9, nil))
	st := s.State()
	st.Playback.IsPlaying = true
	st.Playback.Speed = 2

	next := Advance(st, 250)
	assert.InDelta(t, 0.5, next.Playback.Progress, 1e-12)

	st.Playback.Speed = 0.5
	next = Advance(st, 250)
	assert.InDelta(t, 0.125, next.Playback.Progress, 1e-12)
}

func TestStart_FewerThanTwoFramesIsNoop(t *testing.T) {
	s := loadedStore(t, frame(1000, 0.1, 0.1, nil))
	sch, _ := newScheduler(t, s)

	assert.False(t, sch.Start(context.Background()))
	assert.False(t, s.State().Playback.IsPlaying)
	assert.False(t, sch.Running())
}

func TestPlayback_TicksPerFrameFollowDurations(t *testing.T) {
	s := loadedStore(t,
		frame(1000, 0.1, 0.1, nil),
		frame(500, 0.5, 0.5, nil),
		frame(1000, 0.9, 0.9, nil),
	)
	var reports []SessionReport
	sch, clock := newScheduler(t, s, ReporterFunc(func(r SessionReport) { reports = append(reports, r) }))

	require.True(t, sch.Start(context.Background()))
	require.True(t, s.State().Playback.IsPlaying)

	var mu sync.Mutex
	ticksOn := map[int]int{}
	prev := s.State().Playback.CurrentFrameIndex
	cancel := s.Watch(func(st timeline.State) {
		mu.Lock()
		defer mu.Unlock()
		ticksOn[prev]++
		prev = st.Playback.CurrentFrameIndex
	})
	defer cancel()

	for i := 0; i < 1000 && clock.Tick(); i++ {
	}
	sch.Wait()

	mu.Lock()
	defer mu.Unlock()
	// 16ms ticks: ceil(1000/16), ceil(500/16), ceil(1000/16).
	assert.Equal(t, map[int]int{0: 63, 1: 32, 2: 63}, ticksOn)

	st := s.State()
	assert.False(t, st.Playback.IsPlaying)
	assert.Equal(t, 2, st.Playback.CurrentFrameIndex)
	assert.Zero(t, st.Playback.Progress)
	assert.Nil(t, st.View)

	require.Len(t, reports, 1)
	assert.True(t, reports[0].Completed)
	assert.Equal(t, 158, reports[0].Ticks)
	assert.Equal(t, "tac-1", reports[0].TacticID)
	assert.GreaterOrEqual(t, reports[0].Elapsed, 158*16*time.Millisecond)
}

func TestStop_KeepsIndexAndDiscardsLaterTicks(t *testing.T) {
	s := loadedStore(t,
		frame(100, 0.1, 0.1, nil),
		frame(1000, 0.5, 0.5, nil),
		frame(1000, 0.9, 0.9, nil),
	)
	sch, clock := newScheduler(t, s)
	require.True(t, sch.Start(context.Background()))

	for i := 0; i < 10; i++ {
		require.True(t, clock.Tick())
	}
	require.True(t, sch.Stop())

	st := s.State()
	assert.False(t, st.Playback.IsPlaying)
	assert.Equal(t, 1, st.Playback.CurrentFrameIndex)
	assert.Zero(t, st.Playback.Progress)
	assert.Nil(t, st.View)
	assert.False(t, sch.Running())

	version := st.Version
	assert.False(t, clock.Tick(), "ticker stopped with the loop")
	assert.Equal(t, version, s.State().Version)
}

func TestStart_ResumesFromPlayheadAndRewindsAtEnd(t *testing.T) {
	s := loadedStore(t,
		frame(1000, 0.1, 0.1, nil),
		frame(1000, 0.5, 0.5, nil),
		frame(1000, 0.9, 0.9, nil),
	)
	sch, _ := newScheduler(t, s)

	require.True(t, s.SeekFrame(1))
	require.True(t, sch.Start(context.Background()))
	assert.Equal(t, 1, s.State().Playback.CurrentFrameIndex)
	sch.Stop()

	require.True(t, s.SeekFrame(2))
	require.True(t, sch.Start(context.Background()))
	assert.Equal(t, 0, s.State().Playback.CurrentFrameIndex)
}

func TestStart_ReplacesRunningSession(t *testing.T) {
	s := loadedStore(t, frame(1000, 0.1, 0.1, nil), frame(1000, 0.9, 0.9, nil))
	var reports []SessionReport
	sch, clock := newScheduler(t, s, ReporterFunc(func(r SessionReport) { reports = append(reports, r) }))

	require.True(t, sch.Start(context.Background()))
	require.True(t, clock.Tick())
	require.True(t, sch.Start(context.Background()))

	require.Len(t, reports, 1)
	assert.False(t, reports[0].Completed)
	assert.True(t, s.State().Playback.IsPlaying)
	assert.Zero(t, s.State().Playback.Progress)
	assert.True(t, clock.Tick())
}

func TestPlayback_EditModeFollowsPlayhead(t *testing.T) {
	s := loadedStore(t, frame(100, 0.1, 0.1, nil), frame(100, 0.9, 0.9, nil))
	sch, clock := newScheduler(t, s)
	require.Equal(t, timeline.EditMode{FrameIndex: 0}, s.State().Mode)

	require.True(t, sch.Start(context.Background()))
	for i := 0; i < 8; i++ {
		require.True(t, clock.Tick())
	}
	sch.Stop()
	assert.Equal(t, timeline.EditMode{FrameIndex: 1}, s.State().Mode)
}

func TestPlayback_ContextCancelHalts(t *testing.T) {
	s := loadedStore(t, frame(1000, 0.1, 0.1, nil), frame(1000, 0.9, 0.9, nil))
	sch, clock := newScheduler(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, sch.Start(ctx))
	require.True(t, clock.Tick())
	cancel()
	sch.Wait()

	assert.False(t, s.State().Playback.IsPlaying)
	assert.Nil(t, s.State().View)
}
