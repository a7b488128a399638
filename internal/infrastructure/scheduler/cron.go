// Package scheduler drives periodic refreshes with robfig/cron.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"TenderMonitor/internal/ports"
)

// Options tunes a CronScheduler.
type Options struct {
	Location *time.Location
	// RunOnStart fires the job once right after Start without waiting for the first tick.
	RunOnStart bool
	Logger     *slog.Logger
}

// CronScheduler runs a single job on a cron expression.
type CronScheduler struct {
	spec string
	opts Options
	mu   sync.Mutex
	cron *cron.Cron
	// startup tracks the RunOnStart execution, which cron's own job waiter does not see.
	startup sync.WaitGroup
	logger  *slog.Logger
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler builds a scheduler configured via cron expression string.
func NewCronScheduler(spec string, opts Options) *CronScheduler {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CronScheduler{spec: spec, opts: opts, logger: logger}
}

// Start registers job and starts ticking. Calling Start twice is a no-op.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cron != nil {
		return nil
	}

	loc := c.opts.Location
	cr := cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	id, err := cr.AddFunc(c.spec, func() {
		if ctx.Err() != nil {
			return
		}
		job(time.Now().In(loc))
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc %q: %w", c.spec, err)
	}

	cr.Start()
	c.cron = cr
	c.logger.Info("cron started", "spec", c.spec, "timezone", loc.String())

	if c.opts.RunOnStart {
		// The wrapped job shares the SkipIfStillRunning guard with the ticks.
		wrapped := cr.Entry(id).WrappedJob
		c.startup.Add(1)
		go func() {
			defer c.startup.Done()
			wrapped.Run()
		}()
	}
	return nil
}

// Stop halts the scheduler and waits for running jobs, the start-up run included, until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	cr := c.cron
	c.cron = nil
	c.mu.Unlock()

	if cr == nil {
		return nil
	}

	ticks := cr.Stop()
	startup := make(chan struct{})
	go func() {
		c.startup.Wait()
		close(startup)
	}()

	for _, done := range []<-chan struct{}{ticks.Done(), startup} {
		select {
		case <-done:
		case <-ctx.Done():
			return fmt.Errorf("wait for running job: %w", ctx.Err())
		}
	}
	c.logger.Info("cron stopped")
	return nil
}
