// Package events delivers commit notifications to the engine through a single
// buffered channel drained by a fixed set of workers.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"reviewcreator/internal/models"

	"golang.org/x/sync/errgroup"
)

var (
	ErrQueueFull = errors.New("commit queue is full")
	ErrClosed    = errors.New("dispatcher is closed")
)

// Handler processes one commit. It must not retain ev after returning.
type Handler func(ctx context.Context, ev models.CommitEvent) models.Outcome

type Dispatcher struct {
	queue   chan models.CommitEvent
	handle  Handler
	workers int
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(handle Handler, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		queue:   make(chan models.CommitEvent, max(queueSize, 0)),
		handle:  handle,
		workers: workers,
		logger:  logger,
	}
}

// Publish enqueues ev without blocking.
func (d *Dispatcher) Publish(ev models.CommitEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events. Run returns once the queue is drained.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
}

// Run drains the queue until Close is called or ctx is canceled. Events still
// queued when ctx is canceled are dropped and logged.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := range d.workers {
		g.Go(func() error {
			return d.work(ctx, i)
		})
	}
	return g.Wait()
}

func (d *Dispatcher) work(ctx context.Context, id int) error {
	log := d.logger.With("worker", id)
	for {
		select {
		case <-ctx.Done():
			for ev := range d.pending() {
				log.Warn("dropping queued commit on shutdown", "repository", ev.Repository, "changeset", ev.ChangesetID)
			}
			return nil
		case ev, ok := <-d.queue:
			if !ok {
				return nil
			}
			d.handle(ctx, ev)
		}
	}
}

// pending yields whatever is buffered right now without waiting.
func (d *Dispatcher) pending() func(yield func(models.CommitEvent) bool) {
	return func(yield func(models.CommitEvent) bool) {
		for {
			select {
			case ev, ok := <-d.queue:
				if !ok || !yield(ev) {
					return
				}
			default:
				return
			}
		}
	}
}
