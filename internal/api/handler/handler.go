package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/job-audit/internal/api/dto"
	"github.com/cuongbtq/job-audit/internal/audit"
	"github.com/cuongbtq/job-audit/internal/broadcast"
	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/gin-gonic/gin"
)

// AuditService is the audit task surface exposed over HTTP
type AuditService interface {
	CreateAuditGeneration(ctx context.Context) (int64, error)
	ListClosedTasks(ctx context.Context) ([]domain.ClosedRoleAuditTask, error)
	ListOpenTasks(ctx context.Context) ([]domain.OpenRoleAuditTask, error)
	DispatchClosed(ctx context.Context, ids []int64) (*audit.DispatchResult, error)
	DispatchOpen(ctx context.Context, ids []int64) (*audit.DispatchResult, error)
	Handle(ctx context.Context, msg domain.TaskMessage) (*audit.HandleResult, error)
	AddOpenTask(ctx context.Context, in audit.OpenTaskInput) (*domain.OpenRoleAuditTask, error)
	DeleteOpenTask(ctx context.Context, id int64) error
	SeedOpenTasks(ctx context.Context, sources []audit.OpenTaskInput) (*audit.SeedResult, error)
}

// Broadcaster runs the daily broadcast gate
type Broadcaster interface {
	MaybeBroadcast(ctx context.Context) (broadcast.Outcome, error)
}

// PositionStore is the curation persistence
type PositionStore interface {
	UpdatePositionStatus(ctx context.Context, id int64, status string, closedOn *string) (*domain.Position, error)
	PromoteScrapedJob(ctx context.Context, scrapedID int64) (*domain.Position, error)
	DeleteScrapedJob(ctx context.Context, scrapedID int64) error
}

// HealthChecker reports backing store health
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	DB        HealthChecker
	Audit     AuditService
	Gate      Broadcaster
	Positions PositionStore

	// Sources seed POST /audit/create/open
	Sources []audit.OpenTaskInput
	// Location decides the calendar day used for closed_on
	Location *time.Location
	// Now defaults to time.Now
	Now func() time.Time
}

// respondError logs the cause and answers with a generic message. Validation
// errors keep their text since it describes the caller's input.
func respondError(c *gin.Context, logger *slog.Logger, err error, msg string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrTaskNotFound), errors.Is(err, domain.ErrPositionNotFound):
		status = http.StatusNotFound
	case domain.IsValidationError(err):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		logger.Error(msg,
			slog.String("path", c.Request.URL.Path),
			slog.Any("error", err),
		)
		c.JSON(status, dto.ErrorResponse{Error: msg})
		return
	}

	logger.Warn(msg,
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()),
	)
	c.JSON(status, dto.ErrorResponse{Error: err.Error()})
}
