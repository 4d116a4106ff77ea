package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/go-co-op/gocron/v2"
)

type DeadlineSweeper interface {
	CloseDueEnrollments(ctx context.Context, now time.Time) (int, error)
}

type StaleRequeuer interface {
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type SchedulerConfig struct {
	SweepInterval   time.Duration
	RequeueInterval time.Duration
	// StaleAfter is how long an async job may sit pending before it is
	// pushed onto the queue again.
	StaleAfter time.Duration
}

// Scheduler runs the periodic housekeeping: closing enrollments whose
// deadline passed, re-enqueueing stuck generation jobs and sampling the
// queue depth.
type Scheduler struct {
	cron     gocron.Scheduler
	sweeper  DeadlineSweeper
	requeuer StaleRequeuer
	queue    Source
	cfg      SchedulerConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewScheduler(sweeper DeadlineSweeper, requeuer StaleRequeuer, queue Source, cfg SchedulerConfig, logger *slog.Logger, m *metrics.Metrics) (*Scheduler, error) {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.RequeueInterval <= 0 {
		cfg.RequeueInterval = 5 * time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}

	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:     cron,
		sweeper:  sweeper,
		requeuer: requeuer,
		queue:    queue,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
	}

	jobs := []struct {
		name     string
		interval time.Duration
		run      func()
	}{
		{"enrollment-deadline-sweep", cfg.SweepInterval, s.sweepDeadlines},
		{"stale-generation-requeue", cfg.RequeueInterval, s.requeueStale},
	}
	for _, j := range jobs {
		_, err := cron.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(j.run),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			cancel()
			_ = cron.Shutdown()
			return nil, fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started",
		slog.Duration("sweep_interval", s.cfg.SweepInterval),
		slog.Duration("requeue_interval", s.cfg.RequeueInterval))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.cancel()
	return s.cron.Shutdown()
}

func (s *Scheduler) sweepDeadlines() {
	if s.sweeper == nil {
		return
	}
	closed, err := s.sweeper.CloseDueEnrollments(s.ctx, time.Now())
	if err != nil {
		s.logger.Error("enrollment deadline sweep failed", slog.Any("error", err))
		return
	}
	if closed > 0 {
		s.logger.Info("enrollment deadline sweep closed tournaments", slog.Int("closed", closed))
	}
}

func (s *Scheduler) requeueStale() {
	if s.queue != nil {
		if n, err := s.queue.Len(s.ctx); err == nil {
			s.metrics.SetQueueDepth(n)
		}
	}
	if s.requeuer == nil {
		return
	}
	if _, err := s.requeuer.RequeueStale(s.ctx, s.cfg.StaleAfter); err != nil {
		s.logger.Error("stale generation requeue failed", slog.Any("error", err))
	}
}
