package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cuongbtq/job-audit/internal/api/dto"
	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/gin-gonic/gin"
)

// closedOnLayout is the MM/DD/YY format stored in positions.closed_on
const closedOnLayout = "01/02/06"

// PositionHandler handles position curation requests
type PositionHandler struct {
	logger    *slog.Logger
	positions PositionStore
	location  *time.Location
	now       func() time.Time
}

// NewPositionHandler creates a new PositionHandler instance
func NewPositionHandler(deps *Dependencies) *PositionHandler {
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &PositionHandler{
		logger:    deps.Logger,
		positions: deps.Positions,
		location:  loc,
		now:       now,
	}
}

// UpdateStatus handles PUT /positions/:id/status
// Closing a position stamps closed_on with today, reopening clears it
func (h *PositionHandler) UpdateStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdatePositionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	status, err := domain.ParsePositionStatus(req.Status)
	if err != nil {
		respondError(c, h.logger, err, "Invalid status")
		return
	}

	var closedOn *string
	if status == domain.PositionStatusClosed {
		today := h.now().In(h.location).Format(closedOnLayout)
		closedOn = &today
	}

	pos, err := h.positions.UpdatePositionStatus(c.Request.Context(), id, status, closedOn)
	if err != nil {
		respondError(c, h.logger, err, "Failed to update position")
		return
	}

	h.logger.Info("Position status updated",
		slog.Int64("position_id", id),
		slog.String("status", status),
	)
	c.JSON(http.StatusOK, pos)
}

// Promote handles PUT /positions/:id/promote where id is a scraped job id
func (h *PositionHandler) Promote(c *gin.Context) {
	scrapedID, ok := parseID(c, "id")
	if !ok {
		return
	}

	pos, err := h.positions.PromoteScrapedJob(c.Request.Context(), scrapedID)
	if err != nil {
		respondError(c, h.logger, err, "Failed to promote position")
		return
	}

	h.logger.Info("Scraped job promoted",
		slog.Int64("scraped_id", scrapedID),
		slog.Int64("position_id", pos.ID),
	)
	c.JSON(http.StatusOK, pos)
}

// Delete handles DELETE /positions/:id where id is a scraped job id
func (h *PositionHandler) Delete(c *gin.Context) {
	scrapedID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.positions.DeleteScrapedJob(c.Request.Context(), scrapedID); err != nil {
		respondError(c, h.logger, err, "Failed to delete position")
		return
	}

	h.logger.Info("Scraped job deleted", slog.Int64("scraped_id", scrapedID))
	c.Status(http.StatusNoContent)
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: name + " must be a positive integer"})
		return 0, false
	}
	return id, true
}
