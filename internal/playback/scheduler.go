// Package playback animates the play-head of a timeline.Store across its
// frames on a fixed tick.
package playback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lineupkit/tacticboard/internal/timeline"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultTickInterval is roughly one 60 Hz frame.
const DefaultTickInterval = 16 * time.Millisecond

// Options configures a Scheduler.
type Options struct {
	Clock        Clock
	TickInterval time.Duration
	Logger       *slog.Logger
	Reporters    []Reporter
}

// Scheduler runs at most one playback loop at a time. Each loop carries a
// generation token; a tick computed by a loop whose token is no longer
// current is discarded inside Store.Update, so nothing lands after Stop.
type Scheduler struct {
	store     *timeline.Store
	clock     Clock
	interval  time.Duration
	logger    *slog.Logger
	reporters []Reporter

	generation atomic.Uint64

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}

	ticks    metric.Int64Counter
	sessions metric.Int64Counter
}

// New creates a scheduler driving store.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(store *timeline.Store, opts Options) (*Scheduler, error) {
	s := &Scheduler{
		store:     store,
		clock:     opts.Clock,
		interval:  opts.TickInterval,
		logger:    opts.Logger,
		reporters: opts.Reporters,
	}
	if s.clock == nil {
		s.clock = RealClock()
	}
	if s.interval <= 0 {
		s.interval = DefaultTickInterval
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "playback")

	m := meter()
	var err error
	s.ticks, err = m.Int64Counter(
		"playback.ticks",
		metric.WithDescription("Total playback ticks applied"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}
	s.sessions, err = m.Int64Counter(
		"playback.sessions",
		metric.WithDescription("Total playback sessions finished"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sessions counter: %w", err)
	}
	return s, nil
}

// AddReporter registers r for sessions started afterwards.
func (s *Scheduler) AddReporter(r Reporter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reporters = append(s.reporters, r)
}

// Start stops any running session and starts a new one from the current
// play-head. A play-head on the last frame rewinds to the first. It does
// nothing when the tactic has fewer than two frames.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	gen := s.generation.Add(1)

	var started timeline.State
	ok := s.store.Update(func(st timeline.State) (timeline.State, bool) {
		if !st.CanPlay() {
			return st, false
		}
		idx := st.Playback.CurrentFrameIndex
		if idx < 0 || idx >= len(st.Tactic.Frames)-1 {
			idx = 0
		}
		speed := st.Playback.Speed
		if speed <= 0 {
			speed = 1
		}
		st.Playback = timeline.PlaybackState{IsPlaying: true, CurrentFrameIndex: idx, Speed: speed}
		st.View = nil
		st.History = st.History.Reset()
		if _, editing := st.Mode.(timeline.EditMode); editing {
			st.Mode = timeline.EditMode{FrameIndex: idx}
		}
		started = st
		return st, true
	})
	if !ok {
		s.logger.Debug("playback not started", "frames", s.store.State().FrameCount())
		return false
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done

	report := SessionReport{
		TacticID: started.Tactic.ID,
		Frames:   started.FrameCount(),
		Speed:    started.Playback.Speed,
	}
	reporters := append([]Reporter(nil), s.reporters...)
	ticker := s.clock.NewTicker(s.interval)

	s.logger.Info("playback started",
		"tacticId", report.TacticID,
		"frames", report.Frames,
		"fromIndex", started.Playback.CurrentFrameIndex,
		"speed", report.Speed,
	)
	go s.loop(ctx, gen, ticker, stop, done, report, reporters, s.clock.Now())
	return true
}

// Stop cancels the running session and waits for its loop to exit. The
// interpolated view and progress are cleared; the play-head index stays.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

// Wait blocks until the most recent loop exits.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether a loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (s *Scheduler) stopLocked() bool {
	s.generation.Add(1)
	if s.stop != nil {
		close(s.stop)
		<-s.done
		s.stop = nil
	}
	return s.store.Update(func(st timeline.State) (timeline.State, bool) {
		if !st.Playback.IsPlaying && st.View == nil && st.Playback.Progress == 0 {
			return st, false
		}
		return halted(st), true
	})
}

func (s *Scheduler) loop(ctx context.Context, gen uint64, ticker Ticker, stop, done chan struct{}, report SessionReport, reporters []Reporter, startedAt time.Time) {
	defer close(done)
	defer ticker.Stop()

	tickMs := float64(s.interval) / float64(time.Millisecond)

	finish := func(completed bool) {
		report.Completed = completed
		report.Elapsed = s.clock.Now().Sub(startedAt)
		s.sessions.Add(context.Background(), 1,
			metric.WithAttributes(attribute.Bool("completed", completed)))
		for _, r := range reporters {
			r.ReportSession(report)
		}
	}

	for {
		select {
		case <-stop:
			finish(false)
			return
		case <-ctx.Done():
			s.store.Update(func(st timeline.State) (timeline.State, bool) {
				if s.generation.Load() != gen {
					return st, false
				}
				return halted(st), true
			})
			s.logger.Debug("playback cancelled", "reason", ctx.Err())
			finish(false)
			return
		case <-ticker.C():
			playing := false
			applied := s.store.Update(func(st timeline.State) (timeline.State, bool) {
				if s.generation.Load() != gen || !st.Playback.IsPlaying {
					return st, false
				}
				next := Advance(st, tickMs)
				playing = next.Playback.IsPlaying
				return next, true
			})
			if !applied {
				s.logger.Debug("stale tick discarded", "generation", gen)
				finish(false)
				return
			}
			report.Ticks++
			s.ticks.Add(context.Background(), 1)
			if !playing {
				s.logger.Info("playback finished", "tacticId", report.TacticID, "ticks", report.Ticks)
				finish(true)
				return
			}
		}
	}
}
