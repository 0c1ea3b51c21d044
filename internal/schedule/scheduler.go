// Package schedule runs periodic maintenance jobs.
package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron specs until its context ends.
type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

// CronScheduler accepts five-field cron specs as well as descriptors such
// as "@hourly" or "@every 10m". A job never overlaps with itself.
type CronScheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	mu      sync.Mutex
	entries map[string]cron.EntryID
	ctx     context.Context
}

// NewCronScheduler returns a scheduler that logs job failures to logger.
func NewCronScheduler(logger *zap.Logger) *CronScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
		ctx:     context.Background(),
	}
}

// AddJob registers job to run on spec.
func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := c.logger.With(zap.String("job", name), zap.String("spec", spec))

	entryID, err := c.cron.AddFunc(spec, c.wrap(job, spec))
	if err != nil {
		logger.Error("schedule job failed", zap.Error(err))

		return err
	}

	c.mu.Lock()
	c.entries[name] = entryID
	c.mu.Unlock()

	logger.Info("job scheduled")

	return nil
}

// Start begins running jobs in the background. Each run receives ctx.
func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	c.cron.Start()
}

// Stop waits for running jobs to finish.
func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) runContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ctx
}

func (c *CronScheduler) wrap(job Job, spec string) func() {
	var running atomic.Bool

	return func() {
		logger := c.logger.With(zap.String("job", job.Name()), zap.String("spec", spec))

		if !running.CompareAndSwap(false, true) {
			logger.Info("job skipped: still running")

			return
		}
		defer running.Store(false)

		start := time.Now()

		logger.Debug("job started")

		err := job.Run(c.runContext())
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))

			return
		}

		logger.Info("job finished", zap.Duration("duration", elapsed))
	}
}
