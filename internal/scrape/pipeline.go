// Package scrape runs the open-role pipeline: fetch a listing page, find
// posting links, drop already seen ones and extract the rest.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/cuongbtq/job-audit/internal/extract"
	"github.com/cuongbtq/job-audit/internal/fetcher"
	"golang.org/x/sync/errgroup"
)

// PageFetcher renders a page to text
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*fetcher.Page, error)
}

// LinkExtractor finds posting links on a listing page
type LinkExtractor interface {
	ExtractLinks(ctx context.Context, text, sourceURL string, hints extract.Hints) ([]string, error)
}

// JobExtractor reads one posting
type JobExtractor interface {
	ExtractJob(ctx context.Context, text, sourceURL string) (*domain.ScrapedJob, error)
}

// Store is the persistence the pipeline needs
type Store interface {
	URLStore
	InsertScrapedJobs(ctx context.Context, jobs []domain.ScrapedJob) (int64, error)
}

// Config bounds the detail page fan-out
type Config struct {
	Concurrency  int
	RatePerHost  float64
	BurstPerHost int
}

// Result summarizes one run
type Result struct {
	Candidates int
	Unseen     int
	Extracted  int
	Failed     int
	Inserted   int64
	Jobs       []domain.ScrapedJob
}

// Empty reports whether the run stored no new jobs
func (r *Result) Empty() bool {
	return r.Inserted == 0
}

// Pipeline scrapes open-role audit tasks
type Pipeline struct {
	pages   PageFetcher
	links   LinkExtractor
	jobs    JobExtractor
	store   Store
	limiter *HostLimiter
	workers int
	logger  *slog.Logger
}

// NewPipeline creates a Pipeline
func NewPipeline(pages PageFetcher, links LinkExtractor, jobs JobExtractor, store Store, cfg Config, logger *slog.Logger) *Pipeline {
	workers := cfg.Concurrency
	if workers <= 0 {
		workers = 1
	}

	return &Pipeline{
		pages:   pages,
		links:   links,
		jobs:    jobs,
		store:   store,
		limiter: NewHostLimiter(cfg.RatePerHost, cfg.BurstPerHost),
		workers: workers,
		logger:  logger,
	}
}

// Run scrapes task.URL. A failure to fetch the listing page or to reach the
// store is returned; failures on individual postings are counted and skipped.
func (p *Pipeline) Run(ctx context.Context, task *domain.OpenRoleAuditTask) (*Result, error) {
	start := time.Now()
	log := p.logger.With(
		slog.Int64("task_id", task.ID),
		slog.String("source_url", task.URL),
	)

	listing, err := p.pages.Fetch(ctx, task.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing page: %w", err)
	}

	candidates, err := p.links.ExtractLinks(ctx, listing.Text, task.URL, extract.Hints{
		ExtraNotes:     task.ExtraNotes,
		JobTitleFilter: task.JobTitleFilter,
	})
	if err != nil {
		log.Warn("Link extraction failed, continuing with no links", slog.Any("error", err))
		candidates = nil
	}

	unseen, err := FilterUnseen(ctx, p.store, candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to filter scraped urls: %w", err)
	}

	log.Info("Scraping postings",
		slog.Int("candidates", len(candidates)),
		slog.Int("unseen", len(unseen)),
	)

	extracted := p.extractAll(ctx, log, unseen)

	result := &Result{
		Candidates: len(candidates),
		Unseen:     len(unseen),
		Jobs:       make([]domain.ScrapedJob, 0, len(unseen)),
	}

	hint, hasHint := domain.ParseSite(task.Site)
	taskID := task.ID

	for _, job := range extracted {
		if job == nil {
			result.Failed++
			continue
		}

		job.ScrapingTaskID = &taskID
		job.CompanyID = task.CompanyID
		job.Hidden = true
		job.Status = domain.PositionStatusOpen
		if hasHint && job.Site == domain.SiteOther {
			job.Site = hint
		}

		result.Jobs = append(result.Jobs, *job)
	}
	result.Extracted = len(result.Jobs)

	if len(result.Jobs) > 0 {
		result.Inserted, err = p.store.InsertScrapedJobs(ctx, result.Jobs)
		if err != nil {
			return nil, fmt.Errorf("failed to store scraped jobs: %w", err)
		}
	}

	log.Info("Scrape finished",
		slog.Int("extracted", result.Extracted),
		slog.Int("failed", result.Failed),
		slog.Int64("inserted", result.Inserted),
		slog.Duration("duration", time.Since(start)),
	)

	return result, nil
}

// extractAll fetches and extracts every url. The slot for a failed url is nil.
func (p *Pipeline) extractAll(ctx context.Context, log *slog.Logger, urls []string) []*domain.ScrapedJob {
	out := make([]*domain.ScrapedJob, len(urls))

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, u := range urls {
		g.Go(func() error {
			job, err := p.extractOne(ctx, u)
			if err != nil {
				log.Warn("Skipping posting",
					slog.String("url", u),
					slog.Any("error", err),
				)
				return nil // best-effort: don't cancel siblings
			}
			out[i] = job
			return nil
		})
	}

	_ = g.Wait()
	return out
}

func (p *Pipeline) extractOne(ctx context.Context, url string) (*domain.ScrapedJob, error) {
	if err := p.limiter.WaitURL(ctx, url); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	page, err := p.pages.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	return p.jobs.ExtractJob(ctx, page.Text, url)
}
