// Package scheduler runs ingestion on a cron schedule. Every tick covers a
// trailing window of days, so days that failed earlier are retried until
// their partitions exist.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"stock_pipeline/internal/feature/prices/domain/entity"
)

// Job ingests the inclusive range [start, end].
type Job func(ctx context.Context, start, end entity.TradingDay) error

// Scheduler manages the ingestion cron task.
type Scheduler struct {
	cron     *cron.Cron
	ctx      context.Context
	job      Job
	lookback int
	now      func() time.Time
}

// New creates a Scheduler. ctx is passed to every job run; cancel it to
// abort a run in progress.
func New(ctx context.Context, job Job, lookbackDays int) *Scheduler {
	if lookbackDays < 0 {
		lookbackDays = 0
	}
	return &Scheduler{
		// 前回の実行が終わっていなければ今回の実行はスキップ
		cron:     cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		ctx:      ctx,
		job:      job,
		lookback: lookbackDays,
		now:      time.Now,
	}
}

// Register adds the ingestion task with a six-field (seconds first) cron spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.RunNow); err != nil {
		return fmt.Errorf("register ingest task %q: %w", spec, err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "entries", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for a running job to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("scheduler stopped")
}

// Window returns the days the next run covers: today and the lookback days before it.
func (s *Scheduler) Window() (start, end entity.TradingDay) {
	end = entity.NewTradingDay(s.now())
	return end.AddDays(-s.lookback), end
}

// RunNow executes the task immediately.
func (s *Scheduler) RunNow() {
	if s.ctx.Err() != nil {
		return
	}
	start, end := s.Window()
	slog.Info("running scheduled ingest", "start", start, "end", end)
	if err := s.job(s.ctx, start, end); err != nil {
		slog.Error("scheduled ingest failed", "start", start, "end", end, "error", err)
	}
}
