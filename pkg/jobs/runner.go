package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is a maintenance routine executed by a Runner.
type Task func(ctx context.Context) error

// Runner executes a named maintenance task on a fixed interval. Runs outside
// the schedule can be requested with Kick; a request made while one is
// already pending is absorbed.
type Runner struct {
	name     string
	interval time.Duration
	task     Task
	logger   *zap.Logger

	kicks   chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

// NewRunner builds a runner for the given task.
func NewRunner(name string, interval time.Duration, task Task, logger *zap.Logger) *Runner {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger,
		kicks:    make(chan struct{}, 1),
	}
}

// Start launches the scheduling loop. Safe to call once.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.loop()
	r.started = true
	r.logger.Sugar().Infow("maintenance runner started", "runner", r.name, "interval", r.interval)
}

// Stop cancels the loop and waits for it to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.mu.Unlock()
	r.wg.Wait()
	r.logger.Sugar().Infow("maintenance runner stopped", "runner", r.name)
}

// Kick requests a run ahead of the next tick.
func (r *Runner) Kick() error {
	r.mu.Lock()
	ctx := r.ctx
	started := r.started
	r.mu.Unlock()

	if !started {
		return fmt.Errorf("runner %s not started", r.name)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("runner %s stopped: %w", r.name, err)
	}

	select {
	case r.kicks <- struct{}{}:
	default:
	}
	return nil
}

func (r *Runner) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.run()
		case <-r.kicks:
			r.run()
		}
	}
}

func (r *Runner) run() {
	start := time.Now()
	if err := r.task(r.ctx); err != nil {
		r.logger.Sugar().Errorw("maintenance run failed", "runner", r.name, "error", err)
		return
	}
	r.logger.Sugar().Debugw("maintenance run finished", "runner", r.name, "took", time.Since(start))
}
