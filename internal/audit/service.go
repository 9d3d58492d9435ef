// Package audit owns the audit task lifecycle: generation, dispatch onto the
// task queue and execution of queued tasks.
package audit

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/cuongbtq/job-audit/internal/scrape"
)

// Store is the task persistence the service needs
type Store interface {
	ReplaceClosedRoleTasks(ctx context.Context) (int64, error)
	ListClosedRoleTasks(ctx context.Context, ids []int64) ([]domain.ClosedRoleAuditTask, error)
	GetClosedRoleTask(ctx context.Context, id int64) (*domain.ClosedRoleAuditTask, error)
	UpdateClosedRoleTaskStatus(ctx context.Context, ids []int64, status domain.AuditStatus, message string) error
	ResetClosedRoleTasks(ctx context.Context, ids []int64) error
	CompleteClosedRoleTask(ctx context.Context, id int64, outcome domain.ClosedRoleOutcome) error

	ListOpenRoleTasks(ctx context.Context, ids []int64) ([]domain.OpenRoleAuditTask, error)
	GetOpenRoleTask(ctx context.Context, id int64) (*domain.OpenRoleAuditTask, error)
	FindOpenRoleTaskByURL(ctx context.Context, url string) (*domain.OpenRoleAuditTask, error)
	CreateOpenRoleTask(ctx context.Context, task *domain.OpenRoleAuditTask) error
	DeleteOpenRoleTask(ctx context.Context, id int64) error
	UpdateOpenRoleTaskStatus(ctx context.Context, ids []int64, status domain.AuditStatus, message string) error

	DeleteScrapedJobsByTask(ctx context.Context, taskID int64) (int64, error)
}

// Queue delivers task messages to workers
type Queue interface {
	Enqueue(ctx context.Context, msg domain.TaskMessage) error
}

// ClosedRoleChecker produces a verdict for one posting URL
type ClosedRoleChecker interface {
	CheckClosedRole(ctx context.Context, url string) (*domain.ClosedRoleOutcome, error)
}

// Scraper runs the open-role pipeline for one task
type Scraper interface {
	Run(ctx context.Context, task *domain.OpenRoleAuditTask) (*scrape.Result, error)
}

// Dependencies holds the collaborators of Service
type Dependencies struct {
	Store   Store
	Queue   Queue
	Checker ClosedRoleChecker
	Scraper Scraper
	Logger  *slog.Logger

	// DispatchConcurrency bounds concurrent enqueues, default 16
	DispatchConcurrency int
}

// Service implements audit task operations
type Service struct {
	store               Store
	queue               Queue
	checker             ClosedRoleChecker
	scraper             Scraper
	logger              *slog.Logger
	dispatchConcurrency int
}

// NewService creates a new audit Service
func NewService(deps *Dependencies) *Service {
	concurrency := deps.DispatchConcurrency
	if concurrency <= 0 {
		concurrency = 16
	}

	return &Service{
		store:               deps.Store,
		queue:               deps.Queue,
		checker:             deps.Checker,
		scraper:             deps.Scraper,
		logger:              deps.Logger,
		dispatchConcurrency: concurrency,
	}
}

// CreateAuditGeneration replaces all closed-role tasks with one NOT_RUN task
// per open, visible position and returns how many were created.
func (s *Service) CreateAuditGeneration(ctx context.Context) (int64, error) {
	return s.store.ReplaceClosedRoleTasks(ctx)
}

// ListClosedTasks returns every closed-role task with its position and company
func (s *Service) ListClosedTasks(ctx context.Context) ([]domain.ClosedRoleAuditTask, error) {
	return s.store.ListClosedRoleTasks(ctx, nil)
}

// ListOpenTasks returns every open-role task with its company
func (s *Service) ListOpenTasks(ctx context.Context) ([]domain.OpenRoleAuditTask, error) {
	return s.store.ListOpenRoleTasks(ctx, nil)
}
