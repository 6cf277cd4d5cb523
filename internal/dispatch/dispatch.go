// Package dispatch runs jobs on a fixed set of workers, keeping jobs with the
// same key in submission order.
package dispatch

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

var dispatchLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	dispatchLogger = l
}

const (
	DefaultWorkers   = 8
	DefaultQueueSize = 64
)

type Job func(ctx context.Context)

// Dispatcher hashes each key to one worker. A worker runs its jobs one at a
// time, so jobs of one key never overlap and keys on other workers are not
// held up by them.
type Dispatcher struct {
	mu     sync.RWMutex
	closed bool
	queues []chan Job

	group *errgroup.Group
}

// New starts the workers. They stop after Close, or when ctx is done and
// their queues are drained.
func New(ctx context.Context, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize < 0 {
		queueSize = DefaultQueueSize
	}

	g, gctx := errgroup.WithContext(ctx)
	d := &Dispatcher{
		queues: make([]chan Job, workers),
		group:  g,
	}

	for i := range d.queues {
		q := make(chan Job, queueSize)
		d.queues[i] = q
		g.Go(func() error {
			d.work(gctx, i, q)
			return nil
		})
	}

	dispatchLogger.Debug().Int("workers", workers).Int("queue_size", queueSize).Msg("Dispatcher started")
	return d
}

func (d *Dispatcher) work(ctx context.Context, id int, q <-chan Job) {
	for job := range q {
		d.run(ctx, id, job)
	}
}

func (d *Dispatcher) run(ctx context.Context, id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			dispatchLogger.Error().Int("worker", id).Interface("panic", r).Msg("Job panicked")
		}
	}()
	job(ctx)
}

func (d *Dispatcher) index(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.queues)))
}

// Submit queues job behind earlier jobs of the same key. It blocks while the
// worker's queue is full.
func (d *Dispatcher) Submit(ctx context.Context, key string, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.queues[d.index(key)] <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, q := range d.queues {
			close(q)
		}
	}
	d.mu.Unlock()

	err := d.group.Wait()
	dispatchLogger.Debug().Msg("Dispatcher stopped")
	return err
}
