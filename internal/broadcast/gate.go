// Package broadcast sends the daily new-jobs notification once every
// open-role task of the day has finished.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-audit/internal/domain"
)

// Outcome is the result of one MaybeBroadcast call
type Outcome string

const (
	OutcomeAlreadyRan Outcome = "already_ran"
	OutcomeNotReady   Outcome = "not_ready"
	OutcomeSent       Outcome = "sent"
	OutcomeNoNewJobs  Outcome = "no_new_jobs"
	OutcomeBusy       Outcome = "busy"
)

const (
	defaultMaxPerList = 10
	lockName          = "broadcast-gate"
	dateLayout        = "2006-01-02"
)

// Store is the persistence the gate reads and writes
type Store interface {
	GetLastBroadcast(ctx context.Context) (*time.Time, error)
	SetLastBroadcast(ctx context.Context, at time.Time) error
	ListOpenRoleTasksUpdatedSince(ctx context.Context, since time.Time) ([]domain.OpenRoleAuditTask, error)
	ListScrapedJobsCreatedSince(ctx context.Context, site domain.Site, since time.Time) ([]domain.ScrapedJob, error)
}

// Notifier delivers one category payload
type Notifier interface {
	Send(ctx context.Context, payload *Payload) error
}

// Locker serializes gate runs across API instances
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error)
}

// Config controls the gate
type Config struct {
	Location   *time.Location
	Categories []domain.Site
	MaxPerList int
	LockTTL    time.Duration
}

// Gate decides whether today's broadcast may be sent and sends it
type Gate struct {
	store    Store
	notifier Notifier
	locker   Locker
	cfg      Config
	now      func() time.Time
	logger   *slog.Logger
}

// Option customizes a Gate
type Option func(*Gate)

// WithLocker guards each run with a distributed lock
func WithLocker(l Locker) Option {
	return func(g *Gate) { g.locker = l }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// NewGate creates a Gate
func NewGate(store Store, notifier Notifier, cfg Config, logger *slog.Logger, opts ...Option) *Gate {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.MaxPerList <= 0 {
		cfg.MaxPerList = defaultMaxPerList
	}
	if len(cfg.Categories) == 0 {
		cfg.Categories = []domain.Site{domain.SiteProduct, domain.SiteConsulting}
	}

	g := &Gate{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaybeBroadcast sends today's notifications if they have not been sent and
// at least one open-role task ran today and every one of them is terminal.
// The marker is written only after at least one send and only when every
// send succeeded.
func (g *Gate) MaybeBroadcast(ctx context.Context) (Outcome, error) {
	if g.locker != nil {
		release, ok, err := g.locker.TryLock(ctx, lockName, g.cfg.LockTTL)
		if err != nil {
			return "", fmt.Errorf("failed to acquire broadcast lock: %w", err)
		}
		if !ok {
			g.logger.Info("Broadcast gate held by another instance")
			return OutcomeBusy, nil
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				g.logger.Warn("Failed to release broadcast lock", slog.Any("error", err))
			}
		}()
	}

	now := g.now().In(g.cfg.Location)
	today := startOfDay(now)

	last, err := g.store.GetLastBroadcast(ctx)
	if err != nil {
		return "", err
	}
	if last != nil && !startOfDay(last.In(g.cfg.Location)).Before(today) {
		g.logger.Info("Broadcast already sent today", slog.Time("last_broadcast", *last))
		return OutcomeAlreadyRan, nil
	}

	tasks, err := g.store.ListOpenRoleTasksUpdatedSince(ctx, today)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		g.logger.Info("No open role tasks ran today")
		return OutcomeNotReady, nil
	}
	for _, t := range tasks {
		if !t.Status.IsTerminal() {
			g.logger.Info("Open role tasks still running",
				slog.Int64("task_id", t.ID),
				slog.String("status", string(t.Status)),
			)
			return OutcomeNotReady, nil
		}
	}

	payloads, err := g.collect(ctx, now, today)
	if err != nil {
		return "", err
	}
	if len(payloads) == 0 {
		g.logger.Info("No new jobs to broadcast")
		return OutcomeNoNewJobs, nil
	}

	for _, p := range payloads {
		if err := g.notifier.Send(ctx, p); err != nil {
			return "", fmt.Errorf("failed to send %s broadcast: %w", p.Category, err)
		}
		g.logger.Info("Broadcast sent",
			slog.String("category", p.Category),
			slog.Int("full_time", len(p.FullTimeData)),
			slog.Int("internship", len(p.InternshipData)),
		)
	}

	if err := g.store.SetLastBroadcast(ctx, now); err != nil {
		return "", err
	}
	return OutcomeSent, nil
}

// collect builds one payload per category that has jobs created today
func (g *Gate) collect(ctx context.Context, now, today time.Time) ([]*Payload, error) {
	var payloads []*Payload

	for _, category := range g.cfg.Categories {
		jobs, err := g.store.ListScrapedJobsCreatedSince(ctx, category, today)
		if err != nil {
			return nil, err
		}

		p := &Payload{
			Category:       string(category),
			Date:           now.Format(dateLayout),
			FullTimeData:   []Listing{},
			InternshipData: []Listing{},
		}
		for _, j := range jobs {
			if j.Title == "" {
				continue
			}
			switch j.JobType {
			case domain.JobTypeInternship:
				if len(p.InternshipData) < g.cfg.MaxPerList {
					p.InternshipData = append(p.InternshipData, newListing(j))
				}
			default:
				if len(p.FullTimeData) < g.cfg.MaxPerList {
					p.FullTimeData = append(p.FullTimeData, newListing(j))
				}
			}
		}

		if len(p.FullTimeData)+len(p.InternshipData) > 0 {
			payloads = append(payloads, p)
		}
	}

	return payloads, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsDeliveryError reports whether err came from the notification endpoint
func IsDeliveryError(err error) bool {
	return errors.Is(err, domain.ErrNotificationFailed)
}
