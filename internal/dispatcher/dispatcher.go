// Package dispatcher routes control commands from the host (or CLI) to their
// registered handlers. Commands that trigger long work can be buffered onto
// their own queue so the caller returns within its tick budget.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/aguther/aircraft/internal/dispatcher"

// Event is one incoming control command with its argument vector.
type Event struct {
	Command   string
	Args      []string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result for the caller.
type HandlerFunc func(Event) (any, error)

// Logger is the minimal logging surface the dispatcher needs; see
// logging.DispatcherLogger for the zerolog adapter.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures how a handler is registered.
type Option func(*registration)

type registration struct {
	queueSize int
	logged    bool
}

// Buffered detaches the handler onto its own goroutine behind a queue of the
// given size. The caller gets "queued" immediately; events arriving while
// the queue is full are dropped and counted.
func Buffered(size int) Option {
	return func(r *registration) { r.queueSize = size }
}

// Logged wraps the handler with debug logging and error reporting.
func Logged() Option {
	return func(r *registration) { r.logged = true }
}

// Dispatcher routes events to registered handlers and publishes queue depth
// and throughput on the global OTel meter (no-op without an SDK).
type Dispatcher struct {
	handlers map[string]HandlerFunc
	logger   Logger

	depthGauge metric.Int64ObservableGauge
	processed  metric.Int64Counter
	dropped    metric.Int64Counter

	mu     sync.RWMutex
	queues map[string]chan Event
}

// New creates a Dispatcher. The logger may be nil when no handler uses
// Logged().
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		queues:   make(map[string]chan Event),
		logger:   logger,
	}
	if err := d.initMetrics(otel.Meter(instrumentationName)); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dispatcher) initMetrics(m metric.Meter) error {
	var err error

	d.depthGauge, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Current number of events in queue"),
	)
	if err != nil {
		return fmt.Errorf("creating queue size gauge: %w", err)
	}

	if _, err = m.RegisterCallback(d.observeQueueDepth, d.depthGauge); err != nil {
		return fmt.Errorf("registering queue callback: %w", err)
	}

	d.processed, err = m.Int64Counter(
		"dispatcher.events.processed",
		metric.WithDescription("Total events processed"),
	)
	if err != nil {
		return fmt.Errorf("creating processed counter: %w", err)
	}

	d.dropped, err = m.Int64Counter(
		"dispatcher.events.dropped",
		metric.WithDescription("Total events dropped due to full queue"),
	)
	if err != nil {
		return fmt.Errorf("creating dropped counter: %w", err)
	}

	return nil
}

func (d *Dispatcher) observeQueueDepth(_ context.Context, o metric.Observer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for cmd, q := range d.queues {
		o.ObserveInt64(d.depthGauge, int64(len(q)),
			metric.WithAttributes(attribute.String("command", cmd)))
	}
	return nil
}

// Register binds a handler to a command. Options are applied inside-out, so
// a buffered handler logs the enqueue, not the eventual execution.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	reg := &registration{}
	for _, opt := range opts {
		opt(reg)
	}

	if reg.queueSize > 0 {
		h = d.detach(command, reg.queueSize, h)
	}
	if reg.logged {
		h = d.logged(command, h)
	}

	d.handlers[command] = h
}

// Dispatch routes an event to its handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	h, ok := d.handlers[e.Command]
	if !ok {
		return nil, fmt.Errorf("unknown command: %s", e.Command)
	}
	return h(e)
}

// HasHandler reports whether the command is registered.
func (d *Dispatcher) HasHandler(command string) bool {
	_, ok := d.handlers[command]
	return ok
}

// detach starts the consumer goroutine for a buffered command and returns
// the enqueue-side handler.
func (d *Dispatcher) detach(command string, size int, h HandlerFunc) HandlerFunc {
	queue := make(chan Event, size)

	d.mu.Lock()
	d.queues[command] = queue
	d.mu.Unlock()

	cmdAttr := metric.WithAttributes(attribute.String("command", command))

	go func() {
		for e := range queue {
			h(e)
			d.processed.Add(context.Background(), 1, cmdAttr)
		}
	}()

	return func(e Event) (any, error) {
		select {
		case queue <- e:
			return "queued", nil
		default:
			d.dropped.Add(context.Background(), 1, cmdAttr)
			return nil, fmt.Errorf("queue full: %s", command)
		}
	}
}

func (d *Dispatcher) logged(command string, h HandlerFunc) HandlerFunc {
	return func(e Event) (any, error) {
		start := time.Now()
		d.logger.Debug("handling event", "command", command, "args", len(e.Args))

		result, err := h(e)
		if err != nil {
			d.logger.Error("event failed", "command", command, "duration", time.Since(start), "error", err)
			return result, err
		}
		d.logger.Debug("event complete", "command", command, "duration", time.Since(start))
		return result, nil
	}
}
