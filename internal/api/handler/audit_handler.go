package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/job-audit/internal/api/dto"
	"github.com/cuongbtq/job-audit/internal/audit"
	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/gin-gonic/gin"
)

// AuditHandler handles audit task HTTP requests
type AuditHandler struct {
	logger  *slog.Logger
	audit   AuditService
	gate    Broadcaster
	sources []audit.OpenTaskInput
}

// NewAuditHandler creates a new AuditHandler instance
func NewAuditHandler(deps *Dependencies) *AuditHandler {
	return &AuditHandler{
		logger:  deps.Logger,
		audit:   deps.Audit,
		gate:    deps.Gate,
		sources: deps.Sources,
	}
}

// CreateClosed handles POST /audit/create/closed
func (h *AuditHandler) CreateClosed(c *gin.Context) {
	n, err := h.audit.CreateAuditGeneration(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to create audit tasks")
		return
	}

	h.logger.Info("Closed role audit generation created", slog.Int64("created", n))
	c.JSON(http.StatusOK, dto.CreateAuditResponse{Created: n})
}

// CreateOpen handles POST /audit/create/open
// Seeds one open-role task per configured source
func (h *AuditHandler) CreateOpen(c *gin.Context) {
	res, err := h.audit.SeedOpenTasks(c.Request.Context(), h.sources)
	if err != nil {
		respondError(c, h.logger, err, "Failed to create audit tasks")
		return
	}

	c.JSON(http.StatusOK, res)
}

// StartClosed handles POST /audit/start/closed
func (h *AuditHandler) StartClosed(c *gin.Context) {
	ids, ok := h.bindTaskIDs(c)
	if !ok {
		return
	}

	res, err := h.audit.DispatchClosed(c.Request.Context(), ids)
	if err != nil {
		respondError(c, h.logger, err, "Failed to start audit")
		return
	}

	c.JSON(http.StatusOK, res)
}

// StartOpen handles POST /audit/start/open
func (h *AuditHandler) StartOpen(c *gin.Context) {
	ids, ok := h.bindTaskIDs(c)
	if !ok {
		return
	}

	res, err := h.audit.DispatchOpen(c.Request.Context(), ids)
	if err != nil {
		respondError(c, h.logger, err, "Failed to start audit")
		return
	}

	c.JSON(http.StatusOK, res)
}

// bindTaskIDs reads the optional {taskIds} body. An empty body selects all tasks.
func (h *AuditHandler) bindTaskIDs(c *gin.Context) ([]int64, bool) {
	var req dto.StartAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return nil, false
	}
	return req.TaskIDs, true
}

// ListClosed handles GET /audit/closed
func (h *AuditHandler) ListClosed(c *gin.Context) {
	tasks, err := h.audit.ListClosedTasks(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to list audit tasks")
		return
	}

	c.JSON(http.StatusOK, dto.ClosedTasksResponse{Tasks: tasks})
}

// ListOpen handles GET /audit/open
func (h *AuditHandler) ListOpen(c *gin.Context) {
	tasks, err := h.audit.ListOpenTasks(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to list audit tasks")
		return
	}

	c.JSON(http.StatusOK, dto.OpenTasksResponse{Tasks: tasks})
}

// AddOpen handles POST /audit/open
func (h *AuditHandler) AddOpen(c *gin.Context) {
	var req dto.AddOpenTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	task, err := h.audit.AddOpenTask(c.Request.Context(), audit.OpenTaskInput{
		URL:            req.URL,
		ExtraNotes:     req.ExtraNotes,
		CompanyID:      req.CompanyID,
		Site:           req.Site,
		JobTitleFilter: req.JobTitleFilter,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to create audit task")
		return
	}

	c.JSON(http.StatusCreated, task)
}

// DeleteOpen handles DELETE /audit/open/:id
func (h *AuditHandler) DeleteOpen(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.audit.DeleteOpenTask(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err, "Failed to delete audit task")
		return
	}

	c.Status(http.StatusNoContent)
}

// HandleTask handles POST /tasks/handle, the queue callback target
func (h *AuditHandler) HandleTask(c *gin.Context) {
	var req dto.HandleTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	taskType, err := domain.ParseTaskType(req.Type)
	if err != nil {
		respondError(c, h.logger, err, "Invalid task type")
		return
	}

	res, err := h.audit.Handle(c.Request.Context(), domain.TaskMessage{
		TaskID:     req.TaskID,
		Type:       taskType,
		JobID:      req.JobID,
		URL:        req.URL,
		ExtraNotes: req.ExtraNotes,
		Site:       req.Site,
	})
	if err != nil {
		respondError(c, h.logger, err, "Failed to handle task")
		return
	}

	c.JSON(http.StatusOK, res)
}

// Results handles POST /audit/results and POST /scrape/results
func (h *AuditHandler) Results(c *gin.Context) {
	out, err := h.gate.MaybeBroadcast(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "Failed to broadcast results")
		return
	}

	c.JSON(http.StatusOK, dto.BroadcastResponse{Outcome: string(out)})
}
