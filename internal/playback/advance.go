package playback

import (
	"github.com/lineupkit/tacticboard/internal/timeline"
	"github.com/lineupkit/tacticboard/pkg/core"
)

// Lerp interpolates linearly between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Advance moves the play-head by one tick of tickMs milliseconds. Frames
// are never modified; the in-between pose is exposed through State.View.
func Advance(st timeline.State, tickMs float64) timeline.State {
	frames := st.Tactic.Frames
	idx := st.Playback.CurrentFrameIndex
	if !st.Playback.IsPlaying || idx < 0 || idx >= len(frames) {
		return halted(st)
	}

	cur := frames[idx]
	speed := st.Playback.Speed
	if speed <= 0 {
		speed = 1
	}
	effective := float64(cur.DurationMs) / speed
	progress := 1.0
	if effective > 0 {
		progress = st.Playback.Progress + tickMs/effective
	}

	if idx == len(frames)-1 {
		if progress >= 1 {
			return halted(st)
		}
		st.Playback.Progress = progress
		st.View = &timeline.PlaybackView{
			Players:     cur.PlayerPositions,
			Ball:        cur.Ball,
			Strokes:     cur.Strokes,
			SourceIndex: idx,
		}
		return st
	}

	if progress >= 1 {
		st.Playback.CurrentFrameIndex = idx + 1
		st.Playback.Progress = 0
		st.View = nil
		if _, editing := st.Mode.(timeline.EditMode); editing {
			st.Mode = timeline.EditMode{FrameIndex: idx + 1}
		}
		return st
	}

	view := Interpolate(cur, frames[idx+1], progress)
	view.SourceIndex = idx
	st.Playback.Progress = progress
	st.View = &view
	return st
}

// Interpolate computes the pose at t between cur and next. Slots missing in
// next keep cur's position. Strokes always come from cur.
func Interpolate(cur, next core.TacticFrame, t float64) timeline.PlaybackView {
	players := make(map[int]core.FramePosition, len(cur.PlayerPositions))
	for slot, a := range cur.PlayerPositions {
		b, ok := next.PlayerPositions[slot]
		if !ok {
			players[slot] = a
			continue
		}
		players[slot] = core.FramePosition{
			SlotID: slot,
			X:      Lerp(a.X, b.X, t),
			Y:      Lerp(a.Y, b.Y, t),
		}
	}
	return timeline.PlaybackView{
		Players: players,
		Ball:    lerpBall(cur.Ball, next.Ball, t),
		Strokes: cur.Strokes,
	}
}

// lerpBall hides the ball for the whole transition when either end hides
// it. A missing ball on either side leaves cur's ball where it is.
func lerpBall(a, b *core.BallPosition, t float64) *core.BallPosition {
	if a == nil {
		return nil
	}
	out := *a
	if b != nil {
		out.X = Lerp(a.X, b.X, t)
		out.Y = Lerp(a.Y, b.Y, t)
		out.Visible = a.Visible && b.Visible
	}
	return &out
}

// halted ends playback, keeping the play-head index.
func halted(st timeline.State) timeline.State {
	st.Playback.IsPlaying = false
	st.Playback.Progress = 0
	st.View = nil
	return st
}
