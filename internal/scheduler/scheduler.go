package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules. A job whose previous run is still
// in progress is skipped rather than run concurrently.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger

	mu  sync.Mutex
	ctx context.Context
}

func New(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "scheduler"))
	adapter := cronLogger{log: log.Sugar()}
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter))),
		log:  log,
		ctx:  context.Background(),
	}
}

// Start runs the scheduler until Stop. Jobs receive ctx's values but not its
// cancellation: a rebalance has no safe point to stop between steps, so a
// cancelled ctx only prevents new runs once Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = context.WithoutCancel(ctx)
	s.mu.Unlock()
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop prevents new runs and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) AddJob(schedule string, job Job) error {
	if job == nil {
		return errors.New("job is required")
	}
	_, err := s.cron.AddFunc(schedule, func() {
		_ = s.RunNow(s.jobContext(), job)
	})
	if err != nil {
		return err
	}
	s.log.Info("job registered", zap.String("schedule", schedule), zap.String("job", job.Name()))
	return nil
}

// RunNow executes job immediately, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	s.log.Debug("running job", zap.String("job", job.Name()))
	if err := job.Run(ctx); err != nil {
		s.log.Error("job failed", zap.String("job", job.Name()), zap.Error(err))
		return err
	}
	s.log.Debug("job completed", zap.String("job", job.Name()))
	return nil
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
