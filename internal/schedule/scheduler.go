package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

// CronScheduler runs jobs on standard 5-field cron specs. A tick is
// skipped when the previous run of the same job has not finished.
type CronScheduler struct {
	cron    *cron.Cron
	runners map[string]*jobRunner
	ctx     atomic.Pointer[context.Context]
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron:    cron.New(cron.WithParser(parser)),
		runners: make(map[string]*jobRunner),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	runner := &jobRunner{job: job, spec: spec, ctx: c.runContext}
	if _, err := c.cron.AddFunc(spec, runner.tick); err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return err
	}
	c.runners[name] = runner
	logger.Info("job scheduled")
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx.Store(&ctx)
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) runContext() context.Context {
	if p := c.ctx.Load(); p != nil {
		return *p
	}
	return context.Background()
}

// jobRunner serializes runs of one scheduled job: a tick that fires while
// the previous run is still going is dropped, not queued.
type jobRunner struct {
	job     Job
	spec    string
	ctx     func() context.Context
	running atomic.Bool
	skipped atomic.Int64
}

func (r *jobRunner) tick() {
	if !r.running.CompareAndSwap(false, true) {
		skips := r.skipped.Add(1)
		logutil.GetLogger(context.Background()).With(
			zap.String("job", r.job.Name()),
			zap.String("spec", r.spec),
			zap.Int64("skipped_total", skips),
		).Info("job skipped: still running")
		return
	}
	defer r.running.Store(false)

	ctx := context.Background()
	if r.ctx != nil {
		ctx = r.ctx()
	}
	logger := logutil.GetLogger(ctx).With(
		zap.String("job", r.job.Name()),
		zap.String("spec", r.spec),
	)
	start := time.Now()
	logger.Info("job started")
	err := r.job.Run(ctx)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
		return
	}
	logger.Info("job finished", zap.Duration("duration", elapsed))
}
