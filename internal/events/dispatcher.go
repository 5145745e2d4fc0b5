package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"duet/internal/logger"
)

// Sink receives events from the dispatcher
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}

// DispatcherConfig tunes queueing and per-sink retries
type DispatcherConfig struct {
	QueueSize    int
	MaxAttempts  int
	InitialDelay time.Duration
	DrainTimeout time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = 200 * time.Millisecond
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 5 * time.Second
	}
	return c
}

// Dispatcher is the post-commit queue. Events are delivered in publish order,
// each one to every sink concurrently, retrying a failing sink a bounded
// number of times.
type Dispatcher struct {
	log   *logger.Logger
	cfg   DispatcherConfig
	sinks []Sink
	queue chan Event

	mu      sync.Mutex
	dropped int
}

// NewDispatcher creates a dispatcher for sinks
func NewDispatcher(log *logger.Logger, cfg DispatcherConfig, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Dispatcher{
		log:   log.With("component", "events"),
		cfg:   cfg,
		sinks: sinks,
		queue: make(chan Event, cfg.QueueSize),
	}
}

// Publish enqueues e. When the queue is full the event is dropped and logged.
func (d *Dispatcher) Publish(e Event) {
	select {
	case d.queue <- e:
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.log.Warn("event queue full, dropping event", "event_id", e.ID, "type", string(e.Type))
	}
}

// Dropped returns the number of events rejected because the queue was full
func (d *Dispatcher) Dropped() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

// Run delivers queued events until ctx is cancelled, then drains what is
// left within the configured drain timeout. An event already being delivered
// when ctx is cancelled finishes its retries.
func (d *Dispatcher) Run(ctx context.Context) error {
	deliverCtx := context.WithoutCancel(ctx)
	for {
		select {
		case e := <-d.queue:
			d.deliver(deliverCtx, e)
		case <-ctx.Done():
			return d.drain()
		}
	}
}

func (d *Dispatcher) drain() error {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.DrainTimeout)
	defer cancel()
	for {
		select {
		case e := <-d.queue:
			d.deliver(ctx, e)
		default:
			return nil
		}
		if ctx.Err() != nil {
			if n := len(d.queue); n > 0 {
				return fmt.Errorf("event drain timed out with %d events pending", n)
			}
			return nil
		}
	}
}

// deliver hands e to every sink. A sink that still fails after its retries
// is logged and skipped; it does not hold back the other sinks.
func (d *Dispatcher) deliver(ctx context.Context, e Event) {
	var g errgroup.Group
	for _, sink := range d.sinks {
		g.Go(func() error {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = d.cfg.InitialDelay
			_, err := backoff.Retry(ctx, func() (struct{}, error) {
				return struct{}{}, sink.Deliver(ctx, e)
			},
				backoff.WithBackOff(b),
				backoff.WithMaxTries(uint(d.cfg.MaxAttempts)),
			)
			if err != nil {
				d.log.Warn("event delivery failed",
					"sink", sink.Name(),
					"event_id", e.ID,
					"type", string(e.Type),
					"error", err,
				)
			}
			return err
		})
	}
	_ = g.Wait()
}
