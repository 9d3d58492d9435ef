package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-audit/internal/domain"
)

// failureWriteTimeout bounds the FAILED status write after the task context ended
const failureWriteTimeout = 10 * time.Second

// HandleOutcome distinguishes a completed run that found nothing new
type HandleOutcome string

const (
	HandleOutcomeCompleted      HandleOutcome = "completed"
	HandleOutcomeCompletedEmpty HandleOutcome = "completed_empty"
)

// HandleResult reports one executed task
type HandleResult struct {
	TaskID  int64           `json:"taskId"`
	Type    domain.TaskType `json:"type"`
	Outcome HandleOutcome   `json:"outcome"`
}

// Handle executes one queued task. The task row is always re-read so a
// redelivered message sees the latest state. On failure the task is marked
// FAILED with the error text and the error is returned.
func (s *Service) Handle(ctx context.Context, msg domain.TaskMessage) (*HandleResult, error) {
	switch msg.Type {
	case domain.TaskTypeClosedRoleAudit:
		return s.handleClosed(ctx, msg)
	case domain.TaskTypeOpenRoleAudit:
		return s.handleOpen(ctx, msg)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidTaskType, msg.Type)
	}
}

func (s *Service) handleClosed(ctx context.Context, msg domain.TaskMessage) (*HandleResult, error) {
	task, err := s.store.GetClosedRoleTask(ctx, msg.TaskID)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		slog.Int64("task_id", task.ID),
		slog.String("type", string(msg.Type)),
	)
	s.checkTransition(log, task.Status)

	url := task.URL
	if url == "" {
		url = msg.URL
	}

	if err := s.store.UpdateClosedRoleTaskStatus(ctx, []int64{task.ID}, domain.AuditStatusInProgress, domain.StatusMessageInProgress); err != nil {
		return nil, s.fail(ctx, log, task.ID, s.store.UpdateClosedRoleTaskStatus, err)
	}

	outcome, err := s.checker.CheckClosedRole(ctx, url)
	if err != nil {
		return nil, s.fail(ctx, log, task.ID, s.store.UpdateClosedRoleTaskStatus, err)
	}

	if err := s.store.CompleteClosedRoleTask(ctx, task.ID, *outcome); err != nil {
		return nil, s.fail(ctx, log, task.ID, s.store.UpdateClosedRoleTaskStatus, err)
	}

	log.Info("Closed role audit completed", slog.String("result", string(outcome.Result)))

	return &HandleResult{TaskID: task.ID, Type: msg.Type, Outcome: HandleOutcomeCompleted}, nil
}

func (s *Service) handleOpen(ctx context.Context, msg domain.TaskMessage) (*HandleResult, error) {
	task, err := s.store.GetOpenRoleTask(ctx, msg.TaskID)
	if err != nil {
		return nil, err
	}

	log := s.logger.With(
		slog.Int64("task_id", task.ID),
		slog.String("type", string(msg.Type)),
	)
	s.checkTransition(log, task.Status)

	if task.URL == "" {
		task.URL = msg.URL
	}

	// clear the previous run's rows so redelivery never duplicates
	cleared, err := s.store.DeleteScrapedJobsByTask(ctx, task.ID)
	if err != nil {
		return nil, s.fail(ctx, log, task.ID, s.store.UpdateOpenRoleTaskStatus, err)
	}
	if cleared > 0 {
		log.Info("Cleared scraped jobs from previous run", slog.Int64("cleared", cleared))
	}

	if err := s.store.UpdateOpenRoleTaskStatus(ctx, []int64{task.ID}, domain.AuditStatusInProgress, domain.StatusMessageInProgress); err != nil {
		return nil, s.fail(ctx, log, task.ID, s.store.UpdateOpenRoleTaskStatus, err)
	}

	res, err := s.scraper.Run(ctx, task)
	if err != nil {
		return nil, s.fail(ctx, log, task.ID, s.store.UpdateOpenRoleTaskStatus, err)
	}

	message, outcome := domain.StatusMessageCompleted, HandleOutcomeCompleted
	if res.Empty() {
		message, outcome = domain.StatusMessageNoJobs, HandleOutcomeCompletedEmpty
	}

	if err := s.store.UpdateOpenRoleTaskStatus(ctx, []int64{task.ID}, domain.AuditStatusCompleted, message); err != nil {
		return nil, s.fail(ctx, log, task.ID, s.store.UpdateOpenRoleTaskStatus, err)
	}

	log.Info("Open role audit completed",
		slog.Int64("inserted", res.Inserted),
		slog.Int("failed", res.Failed),
		slog.String("outcome", string(outcome)),
	)

	return &HandleResult{TaskID: task.ID, Type: msg.Type, Outcome: outcome}, nil
}

// fail records cause on the task and returns it. The write uses a detached
// context so a timed out task still ends FAILED.
func (s *Service) fail(ctx context.Context, log *slog.Logger, taskID int64, update statusUpdater, cause error) error {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	if err := update(writeCtx, []int64{taskID}, domain.AuditStatusFailed, cause.Error()); err != nil {
		log.Error("Failed to mark task as failed", slog.Any("error", err))
		return errors.Join(cause, err)
	}

	log.Error("Audit task failed", slog.Any("error", cause))
	return cause
}

// checkTransition warns when a task starts from an unexpected state. Runs
// still proceed because the queue delivers at least once.
func (s *Service) checkTransition(log *slog.Logger, from domain.AuditStatus) {
	if !domain.CanTransition(from, domain.AuditStatusInProgress) {
		log.Warn("Task started from unexpected status", slog.String("status", string(from)))
	}
}
