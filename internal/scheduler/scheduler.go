// Package scheduler runs the daily seeding and the periodic broadcast check
// on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-audit/internal/audit"
	"github.com/cuongbtq/job-audit/internal/broadcast"
	"github.com/robfig/cron/v3"
)

// AuditService is the part of audit.Service the seed job drives
type AuditService interface {
	SeedOpenTasks(ctx context.Context, sources []audit.OpenTaskInput) (*audit.SeedResult, error)
	DispatchOpen(ctx context.Context, ids []int64) (*audit.DispatchResult, error)
}

// Broadcaster is the broadcast gate
type Broadcaster interface {
	MaybeBroadcast(ctx context.Context) (broadcast.Outcome, error)
}

// Config holds cron specs and the zone they are evaluated in
type Config struct {
	SeedSpec      string
	BroadcastSpec string
	Location      *time.Location
}

// Scheduler wraps robfig/cron
type Scheduler struct {
	cron    *cron.Cron
	audit   AuditService
	gate    Broadcaster
	sources []audit.OpenTaskInput
	cfg     Config
	logger  *slog.Logger
}

// New creates a Scheduler
func New(svc AuditService, gate Broadcaster, sources []audit.OpenTaskInput, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		audit:   svc,
		gate:    gate,
		sources: sources,
		cfg:     cfg,
		logger:  logger,
	}
}

// Start registers both jobs and starts the cron loop. Jobs run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.SeedSpec, func() {
		if err := s.RunSeed(ctx); err != nil {
			s.logger.Error("Scheduled seeding failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule seeding %q: %w", s.cfg.SeedSpec, err)
	}

	if _, err := s.cron.AddFunc(s.cfg.BroadcastSpec, func() {
		if err := s.RunBroadcast(ctx); err != nil {
			s.logger.Error("Scheduled broadcast failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule broadcast %q: %w", s.cfg.BroadcastSpec, err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started",
		slog.String("seed_spec", s.cfg.SeedSpec),
		slog.String("broadcast_spec", s.cfg.BroadcastSpec),
		slog.String("location", s.cfg.Location.String()),
	)
	return nil
}

// Stop stops scheduling and returns a context done when running jobs finish
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Stopping scheduler")
	return s.cron.Stop()
}

// RunSeed seeds open-role tasks from the configured sources and dispatches
// every open-role task.
func (s *Scheduler) RunSeed(ctx context.Context) error {
	seeded, err := s.audit.SeedOpenTasks(ctx, s.sources)
	if err != nil {
		return fmt.Errorf("failed to seed open role tasks: %w", err)
	}

	res, err := s.audit.DispatchOpen(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to dispatch open role tasks: %w", err)
	}

	s.logger.Info("Scheduled seeding finished",
		slog.Int("created", seeded.Created),
		slog.Int("existing", seeded.Existing),
		slog.Int("enqueued", res.Enqueued),
		slog.Int("failed", len(res.Failures)),
	)
	return nil
}

// RunBroadcast runs the broadcast gate once
func (s *Scheduler) RunBroadcast(ctx context.Context) error {
	out, err := s.gate.MaybeBroadcast(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("Broadcast gate checked", slog.String("outcome", string(out)))
	return nil
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{slog.Any("error", err)}, keysAndValues...)...)
}
