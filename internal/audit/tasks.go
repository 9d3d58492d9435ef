package audit

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/cuongbtq/job-audit/internal/domain"
)

// OpenTaskInput describes an open-role task to create
type OpenTaskInput struct {
	URL            string
	ExtraNotes     string
	CompanyID      *int64
	Site           string
	JobTitleFilter string
}

func (in OpenTaskInput) validate() error {
	u, err := url.Parse(strings.TrimSpace(in.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: url must be an absolute http(s) url", domain.ErrInvalidPayload)
	}

	if in.Site != "" {
		if _, ok := domain.ParseSite(in.Site); !ok {
			return fmt.Errorf("%w: unknown site %q", domain.ErrInvalidPayload, in.Site)
		}
	}

	return nil
}

func (in OpenTaskInput) task() *domain.OpenRoleAuditTask {
	return &domain.OpenRoleAuditTask{
		URL:            strings.TrimSpace(in.URL),
		ExtraNotes:     in.ExtraNotes,
		CompanyID:      in.CompanyID,
		Site:           in.Site,
		JobTitleFilter: in.JobTitleFilter,
	}
}

// AddOpenTask creates a NOT_RUN open-role task
func (s *Service) AddOpenTask(ctx context.Context, in OpenTaskInput) (*domain.OpenRoleAuditTask, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	task := in.task()
	if err := s.store.CreateOpenRoleTask(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("Open role task created",
		slog.Int64("task_id", task.ID),
		slog.String("url", task.URL),
	)
	return task, nil
}

// DeleteOpenTask removes an open-role task and the jobs it scraped
func (s *Service) DeleteOpenTask(ctx context.Context, id int64) error {
	if err := s.store.DeleteOpenRoleTask(ctx, id); err != nil {
		return err
	}

	s.logger.Info("Open role task deleted", slog.Int64("task_id", id))
	return nil
}

// SeedResult reports a seeding run
type SeedResult struct {
	Created  int                        `json:"created"`
	Existing int                        `json:"existing"`
	Tasks    []domain.OpenRoleAuditTask `json:"tasks"`
}

// SeedOpenTasks ensures one open-role task exists per source URL. Sources
// whose URL already has a task reuse it.
func (s *Service) SeedOpenTasks(ctx context.Context, sources []OpenTaskInput) (*SeedResult, error) {
	result := &SeedResult{Tasks: make([]domain.OpenRoleAuditTask, 0, len(sources))}
	seen := make(map[string]struct{}, len(sources))

	for _, src := range sources {
		if err := src.validate(); err != nil {
			return nil, fmt.Errorf("source %s: %w", src.URL, err)
		}

		key := strings.TrimSpace(src.URL)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		existing, err := s.store.FindOpenRoleTaskByURL(ctx, key)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			result.Existing++
			result.Tasks = append(result.Tasks, *existing)
			continue
		}

		task := src.task()
		if err := s.store.CreateOpenRoleTask(ctx, task); err != nil {
			return nil, err
		}
		result.Created++
		result.Tasks = append(result.Tasks, *task)
	}

	s.logger.Info("Open role tasks seeded",
		slog.Int("created", result.Created),
		slog.Int("existing", result.Existing),
	)

	return result, nil
}
