// Package cron drives a periodic job inside the process.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type Job func(ctx context.Context) error

type Status struct {
	Running   bool       `json:"running"`
	Interval  string     `json:"interval"`
	Runs      int64      `json:"runs"`
	LastRunAt *time.Time `json:"lastRunAt,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

// Runner runs job once on Start and then every interval until Stop.
type Runner struct {
	name     string
	interval time.Duration
	job      Job

	running atomic.Bool
	runs    atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	lastMu    sync.RWMutex
	lastRunAt time.Time
	lastErr   error
}

func New(name string, interval time.Duration, job Job) (*Runner, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if job == nil {
		return nil, errors.New("job must not be nil")
	}
	return &Runner{
		name:     name,
		interval: interval,
		job:      job,
		done:     make(chan struct{}),
	}, nil
}

func (r *Runner) Start() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running.Store(true)

	go func() {
		defer close(r.done)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		slog.Info("cron started", "job", r.name, "interval", r.interval.String())

		r.safeRun(ctx)

		for {
			select {
			case <-ctx.Done():
				slog.Info("cron stopping", "job", r.name)
				return
			case <-ticker.C:
				r.safeRun(ctx)
			}
		}
	}()

	return true
}

func (r *Runner) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running.Load() {
		return false
	}

	r.cancel()
	<-r.done
	r.running.Store(false)

	slog.Info("cron stopped", "job", r.name)
	return true
}

func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

func (r *Runner) Status() Status {
	r.lastMu.RLock()
	defer r.lastMu.RUnlock()

	st := Status{
		Running:  r.running.Load(),
		Interval: r.interval.String(),
		Runs:     r.runs.Load(),
	}
	if !r.lastRunAt.IsZero() {
		t := r.lastRunAt
		st.LastRunAt = &t
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	return st
}

func (r *Runner) safeRun(ctx context.Context) {
	start := time.Now()

	var err error
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		err = r.job(ctx)
	}()

	r.lastMu.Lock()
	r.lastRunAt = start.UTC()
	r.lastErr = err
	r.lastMu.Unlock()
	r.runs.Add(1)

	if err != nil {
		slog.Error("cron run failed", "job", r.name, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	slog.Debug("cron run completed", "job", r.name, "duration_ms", time.Since(start).Milliseconds())
}
