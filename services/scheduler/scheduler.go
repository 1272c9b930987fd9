// Package scheduler runs background maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/admissions/core"
)

type (
	// Job runs once per tick. ctx is cancelled when the scheduler stops.
	Job func(ctx context.Context) error

	// Recorder is told about each job run, e.g. for metrics.
	Recorder interface {
		RecordJob(job string, duration time.Duration, success bool)
	}

	Scheduler struct {
		cron     *cron.Cron
		logger   core.Logger
		recorder Recorder
		ctx      context.Context
		cancel   context.CancelFunc
	}
)

func New(logger core.Logger, recorder Recorder) *Scheduler {
	cl := cronLogger{logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cl),
			cron.SkipIfStillRunning(cl),
		)),
		logger:   logger,
		recorder: recorder,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Add schedules job. spec follows the standard cron format or a descriptor such as "@every 15m".
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, s.wrap(name, job)); err != nil {
		return errors.Wrapf(err, "scheduling %s (%q)", name, spec)
	}
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling, cancels running jobs and waits for them, or for ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "waiting for jobs")
	}
}

func (s *Scheduler) wrap(name string, job Job) func() {
	return func() {
		start := time.Now()
		err := job(s.ctx)
		if s.recorder != nil {
			s.recorder.RecordJob(name, time.Since(start), err == nil)
		}
		if err != nil && s.ctx.Err() == nil {
			s.logger.Error(fmt.Sprintf("job %s: %v", name, err), err)
		}
	}
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprintf("cron: %s %v", msg, keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s %v: %v", msg, keysAndValues, err), err)
}
