// Package dispatcher routes board commands to their handlers.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrUnknownCommand is returned by Dispatch for unregistered commands.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrQueueFull is returned when a non-blocking buffered handler is saturated.
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned by Dispatch after Close.
	ErrClosed = errors.New("dispatcher closed")
)

// Event is one command issued by the board UI or a script.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
	logged     bool
}

// Buffered makes the handler async with a queue of the given size.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger Logger

	queueSize metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter
	latency   metric.Float64Histogram

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	buffers  map[string]chan Event
	closed   bool
	workers  sync.WaitGroup
}

// New creates a Dispatcher. Metrics go to the global OTel meter, which is
// a no-op until a meter provider is installed.
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}
	if err := d.instrument(meter()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) instrument(m metric.Meter) error {
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&d.processed, "dispatcher.events.processed", "Queued commands processed"},
		{&d.dropped, "dispatcher.events.dropped", "Commands rejected by a full queue"},
		{&d.failed, "dispatcher.events.failed", "Queued commands whose handler returned an error"},
	}
	for _, c := range counters {
		ctr, err := m.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return fmt.Errorf("creating %s: %w", c.name, err)
		}
		*c.dst = ctr
	}

	var err error
	d.latency, err = m.Float64Histogram("dispatcher.command.duration",
		metric.WithDescription("Handler run time for logged commands"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("creating duration histogram: %w", err)
	}

	d.queueSize, err = m.Int64ObservableGauge("dispatcher.queue.size",
		metric.WithDescription("Commands waiting in each queue"),
	)
	if err != nil {
		return fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		d.mu.RLock()
		defer d.mu.RUnlock()
		for cmd, buf := range d.buffers {
			o.ObserveInt64(d.queueSize, int64(len(buf)), metric.WithAttributes(attribute.String("command", cmd)))
		}
		return nil
	}, d.queueSize)
	if err != nil {
		return fmt.Errorf("registering queue callback: %w", err)
	}
	return nil
}

// Register adds a handler for the given command with optional configuration.
// Registering a command twice replaces the first handler.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	// Logging wraps the inner handler so queued commands are logged when
	// they actually run.
	if cfg.logged {
		handler = d.withLogging(command, handler)
	}

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(command, cfg.bufferSize, cfg.blocking, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	closed := d.closed
	d.mu.RUnlock()

	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(e)
}

// HasHandler returns true if a handler is registered for the command.
func (d *Dispatcher) HasHandler(command string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[command]
	return ok
}

// Commands returns the registered commands in sorted order.
func (d *Dispatcher) Commands() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for cmd := range d.handlers {
		out = append(out, cmd)
	}
	slices.Sort(out)
	return out
}

// Close stops accepting commands, drains every queue and waits for the
// queue workers to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.Unlock()

	d.workers.Wait()
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	cmdAttr := attribute.String("command", command)

	d.workers.Add(1)
	go func() {
		defer d.workers.Done()
		for e := range buffer {
			if _, err := h(e); err != nil {
				d.failed.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
				d.logger.Error("queued command failed", "command", command, "error", err)
			}
			d.processed.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
		}
	}()

	// Senders hold the read lock so Close cannot close the queue under them.
	if blocking {
		return func(e Event) (any, error) {
			d.mu.RLock()
			defer d.mu.RUnlock()
			if d.closed {
				return nil, ErrClosed
			}
			buffer <- e
			return "queued", nil
		}
	}

	return func(e Event) (any, error) {
		d.mu.RLock()
		defer d.mu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}
		select {
		case buffer <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, metric.WithAttributes(cmdAttr))
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}

func (d *Dispatcher) withLogging(command string, h HandlerFunc) HandlerFunc {
	attrs := metric.WithAttributes(attribute.String("command", command))
	return func(e Event) (any, error) {
		d.logger.Debug("handling command", "command", command, "args", e.Args)
		start := time.Now()
		result, err := h(e)
		took := time.Since(start)
		d.latency.Record(context.Background(), float64(took.Microseconds())/1000, attrs)

		if err != nil {
			d.logger.Error("command failed", "command", command, "duration", took, "error", err)
			return nil, err
		}
		d.logger.Debug("command complete", "command", command, "duration", took, "result", result)
		return result, nil
	}
}
