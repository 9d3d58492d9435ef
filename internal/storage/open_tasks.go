package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/cuongbtq/job-audit/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const openTaskSelect = `
	SELECT
		t.id, t.url, t.status, t.status_message, t.extra_notes,
		t.company_id, COALESCE(c.name, '') AS company_name,
		t.site, t.job_title_filter, t.created_at, t.updated_at
	FROM open_role_audit_tasks t
	LEFT JOIN companies c ON c.id = t.company_id
`

// ListOpenRoleTasks returns the tasks with the given ids, or all tasks when ids is empty
func (s *Storage) ListOpenRoleTasks(ctx context.Context, ids []int64) ([]domain.OpenRoleAuditTask, error) {
	query := openTaskSelect
	args := []interface{}{}

	if len(ids) > 0 {
		query += ` WHERE t.id = ANY($1)`
		args = append(args, pq.Array(ids))
	}
	query += ` ORDER BY t.id`

	tasks := []domain.OpenRoleAuditTask{}
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list open role tasks: %w", err)
	}

	return tasks, nil
}

// ListOpenRoleTasksUpdatedSince returns tasks touched at or after since
func (s *Storage) ListOpenRoleTasksUpdatedSince(ctx context.Context, since time.Time) ([]domain.OpenRoleAuditTask, error) {
	tasks := []domain.OpenRoleAuditTask{}
	query := openTaskSelect + ` WHERE t.updated_at >= $1 ORDER BY t.id`

	if err := s.db.SelectContext(ctx, &tasks, query, since); err != nil {
		return nil, fmt.Errorf("failed to list open role tasks updated since %s: %w", since.Format(time.RFC3339), err)
	}

	return tasks, nil
}

// GetOpenRoleTask reads one task
func (s *Storage) GetOpenRoleTask(ctx context.Context, id int64) (*domain.OpenRoleAuditTask, error) {
	var task domain.OpenRoleAuditTask

	if err := s.db.GetContext(ctx, &task, openTaskSelect+` WHERE t.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to get open role task: %w", err)
	}

	return &task, nil
}

// FindOpenRoleTaskByURL returns the oldest task for url, or nil if there is none
func (s *Storage) FindOpenRoleTaskByURL(ctx context.Context, url string) (*domain.OpenRoleAuditTask, error) {
	var task domain.OpenRoleAuditTask

	err := s.db.GetContext(ctx, &task, openTaskSelect+` WHERE t.url = $1 ORDER BY t.id LIMIT 1`, url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open role task: %w", err)
	}

	return &task, nil
}

// CreateOpenRoleTask inserts task as NOT_RUN and fills in its id and timestamps
func (s *Storage) CreateOpenRoleTask(ctx context.Context, task *domain.OpenRoleAuditTask) error {
	task.Status = domain.AuditStatusNotRun
	task.StatusMessage = domain.StatusMessageNotRun

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO open_role_audit_tasks (
			url, status, status_message, extra_notes,
			company_id, site, job_title_filter
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`,
		task.URL, task.Status, task.StatusMessage, task.ExtraNotes,
		task.CompanyID, task.Site, task.JobTitleFilter,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create open role task: %w", err)
	}

	return nil
}

// DeleteOpenRoleTask removes a task with its unpromoted scraped jobs.
// Promoted scraped jobs stay, detached from the task.
func (s *Storage) DeleteOpenRoleTask(ctx context.Context, id int64) error {
	return postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteUnpromotedByTask, id); err != nil {
			return fmt.Errorf("failed to delete scraped jobs for task: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM open_role_audit_tasks WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete open role task: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return domain.ErrTaskNotFound
		}

		return nil
	})
}

// UpdateOpenRoleTaskStatus sets status and message on every task in ids
func (s *Storage) UpdateOpenRoleTaskStatus(ctx context.Context, ids []int64, status domain.AuditStatus, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE open_role_audit_tasks
		SET status = $1, status_message = $2, updated_at = NOW()
		WHERE id = ANY($3)
	`, status, message, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to update open role task status: %w", err)
	}

	return nil
}
