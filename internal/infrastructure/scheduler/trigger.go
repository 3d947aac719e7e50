// Package scheduler runs background jobs of the receivables service on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidInterval is returned for a non-positive trigger interval
var ErrInvalidInterval = errors.New("scheduler: interval must be positive")

// Job is one unit of periodic work
type Job func(ctx context.Context) error

// TriggerConfig holds configuration for a periodic trigger
type TriggerConfig struct {
	Name     string
	Interval time.Duration
	// RunOnStart runs the job once right after Start
	RunOnStart bool
	// Timeout bounds a single run; zero means the interval
	Timeout time.Duration
}

// TriggerStats reports what a trigger has done so far
type TriggerStats struct {
	Runs      int
	Failures  int
	LastRunAt time.Time
	LastError string
}

// Trigger runs a Job every Interval until stopped. Runs never overlap.
type Trigger struct {
	config TriggerConfig
	job    Job
	logger *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	stats     TriggerStats
}

// NewTrigger creates a new trigger
func NewTrigger(config TriggerConfig, job Job, logger *zap.Logger) (*Trigger, error) {
	if config.Interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = config.Interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{
		config: config,
		job:    job,
		logger: logger.With(zap.String("job", config.Name)),
	}, nil
}

// Start starts the trigger loop
func (t *Trigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Scheduled job started", zap.Duration("interval", t.config.Interval))
	return nil
}

// Stop stops the trigger and waits for a running job to return
func (t *Trigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Scheduled job stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the trigger's run counters
func (t *Trigger) Stats() TriggerStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

func (t *Trigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		t.runOnce(ctx)
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.runOnce(ctx)
		}
	}
}

func (t *Trigger) runOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	defer cancel()

	start := time.Now()
	err := t.job(runCtx)

	t.mu.Lock()
	t.stats.Runs++
	t.stats.LastRunAt = start
	if err != nil {
		t.stats.Failures++
		t.stats.LastError = err.Error()
	} else {
		t.stats.LastError = ""
	}
	t.mu.Unlock()

	if err != nil {
		// A cancelled run during shutdown is not a failure worth reporting
		if ctx.Err() != nil {
			return
		}
		t.logger.Warn("Scheduled job failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	t.logger.Debug("Scheduled job completed", zap.Duration("duration", time.Since(start)))
}
