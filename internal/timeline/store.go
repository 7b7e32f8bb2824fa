// Package timeline owns the editing session of one tactic: the committed
// frames, the Preview/Edit mode, the annotation history and the play-head.
//
// All state lives in immutable State snapshots. Every operation is a pure
// transition applied through Store.Update, which serialises writers and
// publishes the resulting snapshot to subscribers.
package timeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/lineupkit/tacticboard/internal/annotation"
	"github.com/lineupkit/tacticboard/pkg/core"
)

// Options configures a Store. Zero values fall back to defaults.
type Options struct {
	DefaultFrameDurationMs int
	MaxHistory             int
	// EraserRadius is the hit distance of the eraser, in pitch fractions.
	EraserRadius float64
	Seeds        []core.SeedPosition
	Logger       *slog.Logger
	Now          func() time.Time
}

// DefaultEraserRadius applies when Options.EraserRadius is not set.
const DefaultEraserRadius = 0.02

type rules struct {
	defaultDuration int
	maxHistory      int
	eraserRadius    float64
	now             func() time.Time
}

// Store holds the current snapshot.
type Store struct {
	rules  rules
	logger *slog.Logger

	writeMu sync.Mutex

	mu    sync.RWMutex
	state State

	subsMu      sync.Mutex
	subscribers []chan State
	watchers    map[int]func(State)
	nextWatch   int
}

// New creates a store holding an empty, unnamed tactic in Preview mode.
func New(opts Options) *Store {
	r := rules{
		defaultDuration: core.ClampDuration(opts.DefaultFrameDurationMs),
		maxHistory:      opts.MaxHistory,
		eraserRadius:    opts.EraserRadius,
		now:             opts.Now,
	}
	if r.maxHistory <= 0 {
		r.maxHistory = annotation.DefaultMaxHistory
	}
	if r.eraserRadius <= 0 {
		r.eraserRadius = DefaultEraserRadius
	}
	if r.now == nil {
		r.now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		rules:    r,
		logger:   logger.With("component", "timeline"),
		watchers: make(map[int]func(State)),
	}
	s.state = newTactic(State{Playback: PlaybackState{Speed: 1}}, r, "", opts.Seeds)
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Update applies fn to the current snapshot. When fn reports a change, the
// result becomes the new snapshot, its Version is bumped and subscribers
// are notified. Update calls are serialised; fn must not call back into
// the store.
func (s *Store) Update(fn func(State) (State, bool)) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.State()
	next, changed := fn(cur)
	if !changed {
		return false
	}
	next.Version = cur.Version + 1

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	s.publish(next)
	return true
}

// Subscribe returns a channel receiving every new snapshot. Snapshots are
// dropped for a subscriber whose buffer is full.
func (s *Store) Subscribe(buffer int) <-chan State {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan State, buffer)
	s.subsMu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.subsMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (s *Store) Unsubscribe(ch <-chan State) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for i, sub := range s.subscribers {
		if sub == ch {
			close(sub)
			s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
			return
		}
	}
}

// Watch registers fn to be called synchronously after every change, in
// version order. fn runs while the store's write lock is held: it may read
// State but must not call a store operation, or anything that waits for
// one such as Scheduler.Stop, or it deadlocks. The returned function
// removes fn and may be called from inside fn.
func (s *Store) Watch(fn func(State)) func() {
	s.subsMu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.watchers, id)
		s.subsMu.Unlock()
	}
}

// publish sends st to every subscriber and then runs the watchers. Sends
// happen under subsMu so Unsubscribe cannot close a channel mid-send; they
// never block.
func (s *Store) publish(st State) {
	s.subsMu.Lock()
	dropped := 0
	for _, ch := range s.subscribers {
		select {
		case ch <- st:
		default:
			dropped++
		}
	}
	fns := make([]func(State), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()

	if dropped > 0 {
		s.logger.Debug("subscriber buffer full, snapshot dropped", "version", st.Version, "subscribers", dropped)
	}
	for _, fn := range fns {
		fn(st)
	}
}

// apply runs a named transition and logs the outcome.
func (s *Store) apply(op string, fn func(State) (State, bool)) bool {
	ok := s.Update(fn)
	if ok {
		s.logger.Debug("timeline updated", "op", op, "version", s.State().Version)
	} else {
		s.logger.Debug("timeline operation ignored", "op", op)
	}
	return ok
}
