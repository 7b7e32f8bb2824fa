package playback

import (
	"sync"
	"time"
)

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock is the time source of a Scheduler.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type realClock struct{}

// RealClock returns a Clock backed by the time package.
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// ManualClock is a Clock whose tickers only fire when Tick is called.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

// NewManualClock creates a manual clock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (m *ManualClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// NewTicker registers a ticker fired by Tick.
func (m *ManualClock) NewTicker(d time.Duration) Ticker {
	t := &manualTicker{
		interval: d,
		ch:       make(chan time.Time),
		stopped:  make(chan struct{}),
	}
	m.mu.Lock()
	m.tickers = append(m.tickers, t)
	m.mu.Unlock()
	return t
}

// Tick advances time by one interval of the most recent live ticker and
// delivers the tick. It blocks until the tick is received and returns false
// if no live ticker took it.
func (m *ManualClock) Tick() bool {
	t := m.live()
	if t == nil {
		return false
	}
	m.mu.Lock()
	m.now = m.now.Add(t.interval)
	now := m.now
	m.mu.Unlock()

	select {
	case t.ch <- now:
		return true
	case <-t.stopped:
		return false
	}
}

func (m *ManualClock) live() *manualTicker {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.tickers) - 1; i >= 0; i-- {
		t := m.tickers[i]
		select {
		case <-t.stopped:
			continue
		default:
			return t
		}
	}
	return nil
}

type manualTicker struct {
	interval time.Duration
	ch       chan time.Time
	stopped  chan struct{}
	once     sync.Once
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.once.Do(func() { close(t.stopped) })
}
