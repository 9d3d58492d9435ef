package audit

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/cuongbtq/job-audit/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DispatchOutcome distinguishes a dispatch that found no tasks
type DispatchOutcome string

const (
	DispatchOutcomeDispatched DispatchOutcome = "dispatched"
	DispatchOutcomeEmpty      DispatchOutcome = "empty"
)

// DispatchFailure is a task whose enqueue failed
type DispatchFailure struct {
	TaskID int64  `json:"taskId"`
	Error  string `json:"error"`
}

// DispatchResult summarizes a dispatch
type DispatchResult struct {
	Outcome  DispatchOutcome   `json:"outcome"`
	Total    int               `json:"total"`
	Enqueued int               `json:"enqueued"`
	Failures []DispatchFailure `json:"failures"`
}

// DispatchClosed resets the given closed-role tasks, or all of them when ids
// is empty, to PENDING and enqueues one message per task.
func (s *Service) DispatchClosed(ctx context.Context, ids []int64) (*DispatchResult, error) {
	tasks, err := s.store.ListClosedRoleTasks(ctx, ids)
	if err != nil {
		return nil, err
	}

	taskIDs := make([]int64, len(tasks))
	msgs := make([]domain.TaskMessage, len(tasks))
	for i, t := range tasks {
		taskIDs[i] = t.ID
		msgs[i] = domain.TaskMessage{
			TaskID: t.ID,
			Type:   domain.TaskTypeClosedRoleAudit,
			JobID:  t.JobID,
			URL:    t.URL,
		}
	}

	if err := requireAll(ids, taskIDs); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return emptyDispatch(), nil
	}

	// every task is PENDING before any message can reach a worker
	if err := s.store.ResetClosedRoleTasks(ctx, taskIDs); err != nil {
		return nil, err
	}

	return s.enqueueAll(ctx, msgs, s.store.UpdateClosedRoleTaskStatus), nil
}

// DispatchOpen resets the given open-role tasks, or all of them when ids is
// empty, to PENDING and enqueues one message per task.
func (s *Service) DispatchOpen(ctx context.Context, ids []int64) (*DispatchResult, error) {
	tasks, err := s.store.ListOpenRoleTasks(ctx, ids)
	if err != nil {
		return nil, err
	}

	taskIDs := make([]int64, len(tasks))
	msgs := make([]domain.TaskMessage, len(tasks))
	for i, t := range tasks {
		taskIDs[i] = t.ID
		msgs[i] = domain.TaskMessage{
			TaskID:     t.ID,
			Type:       domain.TaskTypeOpenRoleAudit,
			URL:        t.URL,
			ExtraNotes: t.ExtraNotes,
			Site:       t.Site,
		}
	}

	if err := requireAll(ids, taskIDs); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return emptyDispatch(), nil
	}

	if err := s.store.UpdateOpenRoleTaskStatus(ctx, taskIDs, domain.AuditStatusPending, domain.StatusMessagePending); err != nil {
		return nil, err
	}

	return s.enqueueAll(ctx, msgs, s.store.UpdateOpenRoleTaskStatus), nil
}

func emptyDispatch() *DispatchResult {
	return &DispatchResult{Outcome: DispatchOutcomeEmpty, Failures: []DispatchFailure{}}
}

// requireAll fails with ErrTaskNotFound naming every requested id that
// matched no task. An empty request means all tasks and always passes.
func requireAll(requested, found []int64) error {
	var missing []int64
	for _, id := range requested {
		if !slices.Contains(found, id) && !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: no tasks found with ids %v", domain.ErrTaskNotFound, missing)
}

type statusUpdater func(ctx context.Context, ids []int64, status domain.AuditStatus, message string) error

// enqueueAll publishes msgs concurrently. A failed enqueue never stops the
// others; its task is marked FAILED so it cannot hold the broadcast gate open.
func (s *Service) enqueueAll(ctx context.Context, msgs []domain.TaskMessage, markFailed statusUpdater) *DispatchResult {
	var (
		mu       sync.Mutex
		failures = []DispatchFailure{}
	)

	var g errgroup.Group
	g.SetLimit(s.dispatchConcurrency)

	for _, msg := range msgs {
		g.Go(func() error {
			if err := s.queue.Enqueue(ctx, msg); err != nil {
				s.logger.Error("Failed to enqueue task",
					slog.Int64("task_id", msg.TaskID),
					slog.String("type", string(msg.Type)),
					slog.Any("error", err),
				)

				if uerr := markFailed(context.WithoutCancel(ctx), []int64{msg.TaskID}, domain.AuditStatusFailed, "Failed to enqueue task: "+err.Error()); uerr != nil {
					s.logger.Error("Failed to mark task as failed",
						slog.Int64("task_id", msg.TaskID),
						slog.Any("error", uerr),
					)
				}

				mu.Lock()
				failures = append(failures, DispatchFailure{TaskID: msg.TaskID, Error: err.Error()})
				mu.Unlock()
			}
			return nil // best-effort: don't cancel siblings
		})
	}

	_ = g.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].TaskID < failures[j].TaskID })

	result := &DispatchResult{
		Outcome:  DispatchOutcomeDispatched,
		Total:    len(msgs),
		Enqueued: len(msgs) - len(failures),
		Failures: failures,
	}

	s.logger.Info("Audit tasks dispatched",
		slog.Int("total", result.Total),
		slog.Int("enqueued", result.Enqueued),
		slog.Int("failed", len(failures)),
	)

	return result
}
