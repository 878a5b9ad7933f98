// Package worker runs best-effort background tasks off the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LeventeLantos/openhouse-followup/internal/metrics"
)

var (
	ErrQueueFull = errors.New("worker queue full")
	ErrClosed    = errors.New("worker pool closed")
)

type Task func(ctx context.Context) error

type job struct {
	name string
	fn   Task
}

type Option func(p *Pool)

// WithTaskTimeout bounds each task's context.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pool) { p.taskTimeout = d }
}

// WithErrorSink replaces the default slog sink for failed tasks.
func WithErrorSink(sink func(name string, err error)) Option {
	return func(p *Pool) { p.sink = sink }
}

type Pool struct {
	queue       chan job
	taskTimeout time.Duration
	sink        func(name string, err error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewPool(workers, queueSize int, opts ...Option) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queue:       make(chan job, queueSize),
		taskTimeout: 30 * time.Second,
		sink: func(name string, err error) {
			slog.Error("background task failed", "task", name, "error", err)
		},
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues fn without blocking. A full queue or a closed pool is
// reported to the error sink and returned.
func (p *Pool) Submit(name string, fn Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.report(name, ErrClosed)
		return ErrClosed
	}

	select {
	case p.queue <- job{name: name, fn: fn}:
		return nil
	default:
		p.report(name, ErrQueueFull)
		return ErrQueueFull
	}
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
// When ctx expires first, running tasks are canceled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.queue {
		p.run(j)
	}
}

func (p *Pool) run(j job) {
	ctx, cancel := context.WithTimeout(p.ctx, p.taskTimeout)
	defer cancel()

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		err = j.fn(ctx)
	}()

	metrics.RecordBackgroundTask(j.name, err)
	if err != nil {
		p.report(j.name, err)
	}
}

func (p *Pool) report(name string, err error) {
	if p.sink != nil {
		p.sink(name, err)
	}
}
