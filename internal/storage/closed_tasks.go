package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/cuongbtq/job-audit/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const closedTaskColumns = `
	t.id, t.job_id, p.url, p.title AS job_title,
	COALESCE(c.name, '') AS company_name,
	t.status, t.status_message, t.result, t.justification, t.screenshot,
	t.created_at, t.updated_at
`

const closedTaskFrom = `
	FROM closed_role_audit_tasks t
	JOIN positions p ON p.id = t.job_id
	LEFT JOIN companies c ON c.id = p.company_id
`

// ReplaceClosedRoleTasks clears the previous generation and creates one
// NOT_RUN task per open, visible position in a single transaction.
func (s *Storage) ReplaceClosedRoleTasks(ctx context.Context) (int64, error) {
	var created int64

	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM closed_role_audit_tasks`); err != nil {
			return fmt.Errorf("failed to clear closed role tasks: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO closed_role_audit_tasks (job_id, status, status_message)
			SELECT id, $1, $2
			FROM positions
			WHERE status = $3 AND hidden = FALSE
			ORDER BY id
		`, domain.AuditStatusNotRun, domain.StatusMessageNotRun, domain.PositionStatusOpen)
		if err != nil {
			return fmt.Errorf("failed to insert closed role tasks: %w", err)
		}

		created, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("Closed role audit generation created", slog.Int64("tasks", created))
	return created, nil
}

// ListClosedRoleTasks returns the tasks with the given ids, or all tasks when ids is empty
func (s *Storage) ListClosedRoleTasks(ctx context.Context, ids []int64) ([]domain.ClosedRoleAuditTask, error) {
	query := `SELECT ` + closedTaskColumns + closedTaskFrom
	args := []interface{}{}

	if len(ids) > 0 {
		query += ` WHERE t.id = ANY($1)`
		args = append(args, pq.Array(ids))
	}
	query += ` ORDER BY t.id`

	tasks := []domain.ClosedRoleAuditTask{}
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list closed role tasks: %w", err)
	}

	return tasks, nil
}

// GetClosedRoleTask reads one task with its position URL
func (s *Storage) GetClosedRoleTask(ctx context.Context, id int64) (*domain.ClosedRoleAuditTask, error) {
	var task domain.ClosedRoleAuditTask
	query := `SELECT ` + closedTaskColumns + closedTaskFrom + ` WHERE t.id = $1`

	if err := s.db.GetContext(ctx, &task, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get closed role task: %w", err)
	}

	return &task, nil
}

// UpdateClosedRoleTaskStatus sets status and message on every task in ids
func (s *Storage) UpdateClosedRoleTaskStatus(ctx context.Context, ids []int64, status domain.AuditStatus, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE closed_role_audit_tasks
		SET status = $1, status_message = $2, updated_at = NOW()
		WHERE id = ANY($3)
	`, status, message, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to update closed role task status: %w", err)
	}

	return nil
}

// ResetClosedRoleTasks moves tasks to PENDING and clears any previous verdict
func (s *Storage) ResetClosedRoleTasks(ctx context.Context, ids []int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE closed_role_audit_tasks
		SET status = $1, status_message = $2,
		    result = '', justification = '', screenshot = '',
		    updated_at = NOW()
		WHERE id = ANY($3)
	`, domain.AuditStatusPending, domain.StatusMessagePending, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to reset closed role tasks: %w", err)
	}

	return nil
}

// CompleteClosedRoleTask stores the verdict and marks the task COMPLETED
func (s *Storage) CompleteClosedRoleTask(ctx context.Context, id int64, outcome domain.ClosedRoleOutcome) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE closed_role_audit_tasks
		SET status = $1, status_message = $2,
		    result = $3, justification = $4, screenshot = $5,
		    updated_at = NOW()
		WHERE id = $6
	`, domain.AuditStatusCompleted, domain.StatusMessageCompleted,
		outcome.Result, outcome.Justification, outcome.Screenshot, id)
	if err != nil {
		return fmt.Errorf("failed to complete closed role task: %w", err)
	}

	return nil
}
