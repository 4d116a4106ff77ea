package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-engine/metrics"
	"github.com/Dosada05/tournament-engine/models"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

// Processor runs one generation task. services.GenerationService satisfies it.
type Processor interface {
	ProcessTask(ctx context.Context, task models.GenerationTask) error
}

type PoolConfig struct {
	Workers int
	// ErrorBackoff is how long a worker waits after the queue itself fails.
	ErrorBackoff time.Duration
}

// Pool pulls generation tasks off a Source and hands them to the Processor.
type Pool struct {
	source    Source
	processor Processor
	cfg       PoolConfig
	logger    *slog.Logger
	metrics   *metrics.Metrics

	busy      atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
}

func NewPool(source Source, processor Processor, cfg PoolConfig, logger *slog.Logger, m *metrics.Metrics) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Pool{source: source, processor: processor, cfg: cfg, logger: logger, metrics: m}
}

// Run blocks until ctx is cancelled or the source is closed.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("generation workers started", slog.Int("workers", p.cfg.Workers))
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		id := i + 1
		g.Go(func() error {
			return p.work(gCtx, id)
		})
	}
	err := g.Wait()
	p.logger.Info("generation workers stopped",
		slog.Int64("processed", p.processed.Load()),
		slog.Int64("failed", p.failed.Load()))
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrQueueClosed) {
		return nil
	}
	return err
}

func (p *Pool) work(ctx context.Context, id int) error {
	logger := p.logger.With(slog.Int("worker", id))
	for {
		task, err := p.source.Dequeue(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrNoTask):
			continue
		case errors.Is(err, ErrQueueClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		default:
			logger.Error("failed to read generation queue", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.ErrorBackoff):
			}
			continue
		}

		p.metrics.SetWorkersBusy(p.busy.Inc())
		if err := p.processor.ProcessTask(ctx, task); err != nil {
			p.failed.Inc()
			logger.Error("generation task failed",
				slog.String("job_id", task.JobID),
				slog.Int("tournament_id", task.TournamentID),
				slog.Any("error", err))
		} else {
			logger.Debug("generation task done", slog.String("job_id", task.JobID))
		}
		p.processed.Inc()
		p.metrics.SetWorkersBusy(p.busy.Dec())
	}
}

// Stats reports lifetime counters.
func (p *Pool) Stats() (processed, failed, busy int64) {
	return p.processed.Load(), p.failed.Load(), p.busy.Load()
}
