package timeline

import "github.com/lineupkit/tacticboard/internal/annotation"

// CanAddFrame reports whether AddFrame would commit a frame.
func (s State) CanAddFrame() bool {
	return s.IsPreview() && !s.Playback.IsPlaying
}

// CanDelete reports whether a frame may be deleted at all.
func (s State) CanDelete() bool {
	return !s.Playback.IsPlaying && len(s.Tactic.Frames) > 1
}

// CanSelect reports whether frame i may be opened for editing.
func (s State) CanSelect(i int) bool {
	return !s.Playback.IsPlaying && s.ValidIndex(i)
}

// CanDuplicate reports whether frame i may be duplicated.
func (s State) CanDuplicate(i int) bool {
	return !s.Playback.IsPlaying && s.ValidIndex(i)
}

// CanUndo reports whether the current frame has a stroke to undo.
func (s State) CanUndo() bool {
	e, ok := currentEditable(s)
	return ok && annotation.Layer{Strokes: e.strokes}.CanUndo()
}

// CanRedo reports whether removed strokes can be restored.
func (s State) CanRedo() bool {
	_, ok := currentEditable(s)
	return ok && s.History.Len() > 0
}

// CanPlay reports whether there is a transition to play.
func (s State) CanPlay() bool {
	return len(s.Tactic.Frames) >= 2
}

// CanEnterPreview reports whether EnterPreviewMode is allowed.
func (s State) CanEnterPreview() bool {
	return !s.Playback.IsPlaying
}
