package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/lib/pq"
)

const scrapedJobColumns = `
	id, url, title, company_id, location, description, other, job_type,
	salary_text, visa_sponsored, status, site, min_years_experience,
	min_education, scraping_task, hidden, created_at
`

// scrapedInsertColumns are written by InsertScrapedJobs, in placeholder order
var scrapedInsertColumns = []string{
	"url", "title", "company_id", "location", "description", "other",
	"job_type", "salary_text", "visa_sponsored", "status", "site",
	"min_years_experience", "min_education", "scraping_task", "hidden",
}

// ExistingScrapedURLs returns the subset of urls already stored, in one query
func (s *Storage) ExistingScrapedURLs(ctx context.Context, urls []string) ([]string, error) {
	existing := []string{}
	if len(urls) == 0 {
		return existing, nil
	}

	err := s.db.SelectContext(ctx, &existing,
		`SELECT url FROM scraped_positions WHERE url = ANY($1)`, pq.Array(urls))
	if err != nil {
		return nil, fmt.Errorf("failed to query existing scraped urls: %w", err)
	}

	return existing, nil
}

// InsertScrapedJobs writes jobs in one statement. Rows whose url already
// exists are skipped. It returns the number of rows inserted.
func (s *Storage) InsertScrapedJobs(ctx context.Context, jobs []domain.ScrapedJob) (int64, error) {
	if len(jobs) == 0 {
		return 0, nil
	}

	query, args := buildScrapedInsert(jobs)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scraped jobs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if skipped := int64(len(jobs)) - n; skipped > 0 {
		s.logger.Info("Skipped scraped jobs with existing urls", slog.Int64("skipped", skipped))
	}

	return n, nil
}

func buildScrapedInsert(jobs []domain.ScrapedJob) (string, []interface{}) {
	var b strings.Builder
	args := make([]interface{}, 0, len(jobs)*len(scrapedInsertColumns))

	b.WriteString("INSERT INTO scraped_positions (")
	b.WriteString(strings.Join(scrapedInsertColumns, ", "))
	b.WriteString(") VALUES ")

	for i, j := range jobs {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for c := range scrapedInsertColumns {
			if c > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", len(args)+c+1)
		}
		b.WriteString(")")

		args = append(args,
			j.URL, j.Title, j.CompanyID, j.Location, j.Description, j.Other,
			j.JobType, j.SalaryText, j.VisaSponsored, j.Status, j.Site,
			j.MinYearsExperience, j.MinEducation, j.ScrapingTaskID, j.Hidden,
		)
	}

	b.WriteString(" ON CONFLICT (url) DO NOTHING")
	return b.String(), args
}

// deleteUnpromotedByTask keeps rows already promoted into positions, so a
// curated listing is never orphaned and its url is never scraped again
const deleteUnpromotedByTask = `
	DELETE FROM scraped_positions sp
	WHERE sp.scraping_task = $1
	  AND NOT EXISTS (SELECT 1 FROM positions p WHERE p.scraped_id = sp.id)`

// DeleteScrapedJobsByTask removes the scraped jobs a task produced that have
// not been promoted
func (s *Storage) DeleteScrapedJobsByTask(ctx context.Context, taskID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, deleteUnpromotedByTask, taskID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scraped jobs for task: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n, nil
}

// ListScrapedJobsCreatedSince returns titled jobs for site created at or after since, newest first
func (s *Storage) ListScrapedJobsCreatedSince(ctx context.Context, site domain.Site, since time.Time) ([]domain.ScrapedJob, error) {
	jobs := []domain.ScrapedJob{}

	err := s.db.SelectContext(ctx, &jobs, `
		SELECT `+scrapedJobColumns+`
		FROM scraped_positions
		WHERE created_at >= $1 AND site = $2 AND title <> ''
		ORDER BY created_at DESC, id DESC
	`, since, site)
	if err != nil {
		return nil, fmt.Errorf("failed to list scraped jobs: %w", err)
	}

	return jobs, nil
}
