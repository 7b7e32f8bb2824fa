// Package handlers turns dispatcher commands into timeline, playback and
// storage calls.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lineupkit/tacticboard/internal/dispatcher"
	"github.com/lineupkit/tacticboard/internal/playback"
	"github.com/lineupkit/tacticboard/internal/storage"
	"github.com/lineupkit/tacticboard/internal/timeline"
	"github.com/lineupkit/tacticboard/internal/util"
	"github.com/lineupkit/tacticboard/pkg/core"
)

// ErrNoBackend is returned by storage commands when no backend is configured.
var ErrNoBackend = errors.New("no storage backend configured")

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Store     *timeline.Store
	Scheduler *playback.Scheduler
	Backend   storage.Backend
	Logger    *slog.Logger
	Now       func() time.Time
}

// Service provides handler methods for board commands
type Service struct {
	deps   Dependencies
	ctx    context.Context
	logger *slog.Logger
}

// StateSummary is the result of the :STATE: command.
type StateSummary struct {
	TacticID      string  `json:"tacticId"`
	Name          string  `json:"name"`
	Frames        int     `json:"frames"`
	Mode          string  `json:"mode"`
	SelectedIndex int     `json:"selectedIndex"`
	IsPlaying     bool    `json:"isPlaying"`
	PlayheadIndex int     `json:"playheadIndex"`
	Progress      float64 `json:"progress"`
	Speed         float64 `json:"speed"`
	CanUndo       bool    `json:"canUndo"`
	CanRedo       bool    `json:"canRedo"`
	Version       uint64  `json:"version"`
}

// NewService creates a new handler service. ctx bounds every playback
// session started through :PLAY:.
func NewService(ctx context.Context, deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		deps:   deps,
		ctx:    ctx,
		logger: deps.Logger.With("component", "handlers"),
	}
}

// Register registers all command handlers with the dispatcher.
func (s *Service) Register(d *dispatcher.Dispatcher) {
	// Tactic lifecycle - sync, logged
	d.Register(":TACTIC:NEW:", s.handleNewTactic, dispatcher.Logged())
	d.Register(":TACTIC:RENAME:", s.handleRename, dispatcher.Logged())
	d.Register(":TACTIC:LOAD:", s.handleLoad, dispatcher.Logged())
	d.Register(":TACTIC:LIST:", s.handleList)
	d.Register(":TACTIC:DELETE:", s.handleDelete, dispatcher.Logged())
	// Saving touches disk or a database - buffered
	d.Register(":TACTIC:SAVE:", s.handleSave, dispatcher.Buffered(16), dispatcher.Logged())

	// Frame structure - sync
	d.Register(":FRAME:ADD:", s.handleAddFrame, dispatcher.Logged())
	d.Register(":FRAME:DUPLICATE:", s.handleDuplicateFrame, dispatcher.Logged())
	d.Register(":FRAME:DELETE:", s.handleDeleteFrame, dispatcher.Logged())
	d.Register(":FRAME:SELECT:", s.handleSelectFrame)
	d.Register(":FRAME:MOVE:", s.handleMoveFrame, dispatcher.Logged())
	d.Register(":FRAME:DURATION:", s.handleFrameDuration)
	d.Register(":FRAME:SEEK:", s.handleSeek)
	d.Register(":PREVIEW:", s.handlePreview)

	// Drag gestures - sync, high volume, not logged
	d.Register(":PLAYER:MOVE:", s.handleMovePlayer)
	d.Register(":BALL:MOVE:", s.handleMoveBall)
	d.Register(":BALL:VISIBLE:", s.handleBallVisible)

	// Annotations
	d.Register(":STROKE:ADD:", s.handleAddStroke)
	d.Register(":STROKE:ERASE:", s.handleEraseStroke)
	d.Register(":STROKE:ERASEAT:", s.handleEraseAt)
	d.Register(":STROKE:UNDO:", s.handleUndo)
	d.Register(":STROKE:REDO:", s.handleRedo)
	d.Register(":STROKE:CLEAR:", s.handleClear, dispatcher.Logged())

	// Playback
	d.Register(":PLAY:", s.handlePlay, dispatcher.Logged())
	d.Register(":STOP:", s.handleStop, dispatcher.Logged())
	d.Register(":SPEED:", s.handleSpeed)

	d.Register(":STATE:", s.handleState)
}

// Summary returns the :STATE: view of the current snapshot.
func (s *Service) Summary() StateSummary {
	st := s.deps.Store.State()
	return StateSummary{
		TacticID:      st.Tactic.ID,
		Name:          st.Tactic.Name,
		Frames:        st.FrameCount(),
		Mode:          timeline.ModeName(st.Mode),
		SelectedIndex: st.SelectedIndex(),
		IsPlaying:     st.Playback.IsPlaying,
		PlayheadIndex: st.Playback.CurrentFrameIndex,
		Progress:      st.Playback.Progress,
		Speed:         st.Playback.Speed,
		CanUndo:       st.CanUndo(),
		CanRedo:       st.CanRedo(),
		Version:       st.Version,
	}
}

func (s *Service) handleNewTactic(e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	var seeds []core.SeedPosition
	if len(args) > 1 {
		var err error
		if seeds, err = util.ParseSeeds(args[1]); err != nil {
			return nil, fmt.Errorf("failed to create tactic: %w", err)
		}
	}
	s.stopPlayback()
	return s.deps.Store.CreateNewTactic(name, seeds), nil
}

func (s *Service) handleRename(e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)
	if err := util.RequireArgs(args, 1); err != nil {
		return nil, fmt.Errorf("failed to rename tactic: %w", err)
	}
	return s.deps.Store.Rename(args[0]), nil
}

func (s *Service) handleSave(e dispatcher.Event) (any, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	t := s.deps.Store.Export()
	if err := s.deps.Backend.SaveTactic(&t); err != nil {
		return nil, fmt.Errorf("failed to save tactic %s: %w", t.ID, err)
	}
	s.logger.Info("tactic saved", "tacticId", t.ID, "name", t.Name, "frames", len(t.Frames))
	return t.ID, nil
}

func (s *Service) handleLoad(e dispatcher.Event) (any, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	args := util.CleanArgs(e.Args)
	if err := util.RequireArgs(args, 1); err != nil {
		return nil, fmt.Errorf("failed to load tactic: %w", err)
	}
	t, err := s.deps.Backend.LoadTactic(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to load tactic: %w", err)
	}
	if err := t.Check(); err != nil {
		s.logger.Warn("loaded tactic has invariant violations", "tacticId", t.ID, "error", err)
	}
	s.stopPlayback()
	return s.deps.Store.Load(*t), nil
}

func (s *Service) handleList(e dispatcher.Event) (any, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	list, err := s.deps.Backend.ListTactics()
	if err != nil {
		return nil, fmt.Errorf("failed to list tactics: %w", err)
	}
	return list, nil
}

func (s *Service) handleDelete(e dispatcher.Event) (any, error) {
	if s.deps.Backend == nil {
		return nil, ErrNoBackend
	}
	args := util.CleanArgs(e.Args)
	if err := util.RequireArgs(args, 1); err != nil {
		return nil, fmt.Errorf("failed to delete tactic: %w", err)
	}
	if err := s.deps.Backend.DeleteTactic(args[0]); err != nil {
		return nil, fmt.Errorf("failed to delete tactic: %w", err)
	}
	return true, nil
}

func (s *Service) handleAddFrame(e dispatcher.Event) (any, error) {
	return s.deps.Store.AddFrame(), nil
}

func (s *Service) handleDuplicateFrame(e dispatcher.Event) (any, error) {
	i, err := s.indexArg(e, "duplicate frame")
	if err != nil {
		return nil, err
	}
	return s.deps.Store.DuplicateFrame(i), nil
}

func (s *Service) handleDeleteFrame(e dispatcher.Event) (any, error) {
	i, err := s.indexArg(e, "delete frame")
	if err != nil {
		return nil, err
	}
	return s.deps.Store.DeleteFrame(i), nil
}

func (s *Service) handleSelectFrame(e dispatcher.Event) (any, error) {
	i, err := s.indexArg(e, "select frame")
	if err != nil {
		return nil, err
	}
	return s.deps.Store.SelectFrame(i), nil
}

func (s *Service) handleMoveFrame(e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)
	if err := util.RequireArgs(args, 2); err != nil {
		return nil, fmt.Errorf("failed to move frame: %w", err)
	}
	from, err := util.ParseInt(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to move frame: %w", err)
	}
	to, err := util.ParseInt(args[1])
	if err != nil {
		return nil, fmt.Errorf("failed to move frame: %w", err)
	}
	return s.deps.Store.MoveFrame(from, to), nil
}

func (s *Service) handleFrameDuration(e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)
	if err := util.RequireArgs(args, 2); err != nil {
		return nil, fmt.Errorf("failed to set frame duration: %w", err)
	}
	i, err := util.ParseInt(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to set frame duration: %w", err)
	}
	ms, err := util.ParseInt(args[1])
	if err != nil {
		return nil, fmt.Errorf("failed to set frame duration: %w", err)
	}
	return s.deps.Store.SetFrameDuration(i, ms), nil
}

func (s *Service) handleSeek(e dispatcher.Event) (any, error) {
	i, err := s.indexArg(e, "seek")
	if err != nil {
		return nil, err
	}
	return s.deps.Store.SeekFrame(i), nil
}

func (s *Service) handlePreview(e dispatcher.Event) (any, error) {
	return s.deps.Store.EnterPreviewMode(), nil
}

func (s *Service) handleMovePlayer(e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)
	if err := util.RequireArgs(args, 3); err != nil {
		return nil, fmt.Errorf("failed to move player: %w", err)
	}
	slot, err := util.ParseInt(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to move player: %w", err)
	}
	x, y, err := parseXY(args[1], args[2])
	if err != nil {
		return nil, fmt.Errorf("failed to move player: %w", err)
	}
	return s.deps.Store.MovePlayer(slot, x, y), nil
}

func (s *Service) handleMoveBall(e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)
	if err := util.RequireArgs(args, 2); err != nil {
		return nil, fmt.Errorf("failed to move ball: %w", err)
	}
	x, y, err := parseXY(args[0], args[1])
	if err != nil {
		return nil, fmt.Errorf("failed to move ball: %w", err)
	}
	return s.deps.Store.MoveBall(x, y), nil
}

func (s *Service) handleBallVisible(e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)
	if err := util.RequireArgs(args, 1); err != nil {
		return nil, fmt.Errorf("failed to set ball visibility: %w", err)
	}
	visible, err := util.ParseBool(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to set ball visibility: %w", err)
	}
	return s.deps.Store.SetBallVisible(visible), nil
}

// handleAddStroke expects tool, color, width and a [[x,y],...] point list.
func (s *Service) handleAddStroke(e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)
	if err := util.RequireArgs(args, 4); err != nil {
		return nil, fmt.Errorf("failed to add stroke: %w", err)
	}
	tool, err := core.ParseTool(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to add stroke: %w", err)
	}
	width, err := util.ParseFloat(args[2])
	if err != nil {
		return nil, fmt.Errorf("failed to add stroke: %w", err)
	}
	points, err := util.ParsePoints(args[3])
	if err != nil {
		return nil, fmt.Errorf("failed to add stroke: %w", err)
	}
	if len(points) == 0 {
		return false, nil
	}
	stroke := core.NewStroke(tool, points, args[1], width, s.deps.Now())
	return s.deps.Store.AddStroke(stroke), nil
}

func (s *Service) handleEraseStroke(e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)
	if err := util.RequireArgs(args, 1); err != nil {
		return nil, fmt.Errorf("failed to erase stroke: %w", err)
	}
	return s.deps.Store.EraseStroke(args[0]), nil
}

func (s *Service) handleEraseAt(e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)
	if err := util.RequireArgs(args, 1); err != nil {
		return nil, fmt.Errorf("failed to erase: %w", err)
	}
	points, err := util.ParsePoints(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to erase: %w", err)
	}
	return s.deps.Store.EraseAt(points), nil
}

func (s *Service) handleUndo(e dispatcher.Event) (any, error) {
	return s.deps.Store.Undo(), nil
}

func (s *Service) handleRedo(e dispatcher.Event) (any, error) {
	return s.deps.Store.Redo(), nil
}

func (s *Service) handleClear(e dispatcher.Event) (any, error) {
	return s.deps.Store.ClearStrokes(), nil
}

func (s *Service) handlePlay(e dispatcher.Event) (any, error) {
	if s.deps.Scheduler == nil {
		return false, nil
	}
	return s.deps.Scheduler.Start(s.ctx), nil
}

func (s *Service) handleStop(e dispatcher.Event) (any, error) {
	if s.deps.Scheduler == nil {
		return false, nil
	}
	return s.deps.Scheduler.Stop(), nil
}

func (s *Service) handleSpeed(e dispatcher.Event) (any, error) {
	args := util.CleanArgs(e.Args)
	if err := util.RequireArgs(args, 1); err != nil {
		return nil, fmt.Errorf("failed to set speed: %w", err)
	}
	speed, err := util.ParseFloat(args[0])
	if err != nil {
		return nil, fmt.Errorf("failed to set speed: %w", err)
	}
	return s.deps.Store.SetSpeed(speed), nil
}

func (s *Service) handleState(e dispatcher.Event) (any, error) {
	return s.Summary(), nil
}

func (s *Service) indexArg(e dispatcher.Event, what string) (int, error) {
	args := util.CleanArgs(e.Args)
	if err := util.RequireArgs(args, 1); err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	i, err := util.ParseInt(args[0])
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", what, err)
	}
	return i, nil
}

// stopPlayback ends a running session before the tactic is replaced.
func (s *Service) stopPlayback() {
	if s.deps.Scheduler != nil {
		s.deps.Scheduler.Stop()
	}
}

func parseXY(xs, ys string) (float64, float64, error) {
	x, err := util.ParseFloat(xs)
	if err != nil {
		return 0, 0, err
	}
	y, err := util.ParseFloat(ys)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
