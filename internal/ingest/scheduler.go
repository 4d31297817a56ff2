package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/DeafMist/vnnews-radar/backend/internal/logger"
)

// DefaultInterval is the pause between two ingestion cycles.
const DefaultInterval = 15 * time.Minute

// Scheduler runs a job once at start and then on every tick until the
// context ends. Ticks that fire while a job is still running are dropped,
// so jobs never overlap and a long job is not followed by an immediate rerun.
type Scheduler struct {
	interval time.Duration
	job      func(ctx context.Context)
	log      *slog.Logger
}

// NewScheduler builds a Scheduler. A non-positive interval means DefaultInterval.
func NewScheduler(interval time.Duration, job func(ctx context.Context), log *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{interval: interval, job: job, log: logger.OrDiscard(log)}
}

// ForPipeline schedules p.RunCycle.
func ForPipeline(p *Pipeline, interval time.Duration, log *slog.Logger) *Scheduler {
	return NewScheduler(interval, func(ctx context.Context) { p.RunCycle(ctx) }, log)
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("scheduler running", slog.Duration("interval", s.interval))
	s.runJob(ctx, ticker)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			s.runJob(ctx, ticker)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, ticker *time.Ticker) {
	s.job(ctx)
	// time.Ticker buffers one tick.
	select {
	case <-ticker.C:
	default:
	}
}
