package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cuongbtq/job-audit/internal/domain"
	"github.com/cuongbtq/job-audit/shared/postgresql"
	"github.com/jmoiron/sqlx"
)

const positionColumns = `
	id, company_id, title, url, job_type, status, hidden, closed_on,
	salary_text, visa_sponsored, location, site, scraped_id, created_at
`

// UpdatePositionStatus sets status and closed_on on a curated position
func (s *Storage) UpdatePositionStatus(ctx context.Context, id int64, status string, closedOn *string) (*domain.Position, error) {
	var pos domain.Position

	err := s.db.GetContext(ctx, &pos, `
		UPDATE positions
		SET status = $1, closed_on = $2
		WHERE id = $3
		RETURNING `+positionColumns, status, closedOn, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPositionNotFound
		}
		return nil, fmt.Errorf("failed to update position status: %w", err)
	}

	return &pos, nil
}

// PromoteScrapedJob copies a scraped job into positions as an open, visible
// listing. Promoting the same job again returns the existing position.
func (s *Storage) PromoteScrapedJob(ctx context.Context, scrapedID int64) (*domain.Position, error) {
	var pos domain.Position

	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO positions (
				company_id, title, url, job_type, status, hidden,
				salary_text, visa_sponsored, location, site, scraped_id
			)
			SELECT company_id, title, url, job_type, $2, FALSE,
			       salary_text, visa_sponsored, location, site, id
			FROM scraped_positions
			WHERE id = $1
			ON CONFLICT (scraped_id) DO NOTHING
		`, scrapedID, domain.PositionStatusOpen)
		if err != nil {
			return fmt.Errorf("failed to promote scraped job: %w", err)
		}

		err = tx.GetContext(ctx, &pos, `SELECT `+positionColumns+` FROM positions WHERE scraped_id = $1`, scrapedID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrPositionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read promoted position: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &pos, nil
}

// DeleteScrapedJob removes a scraped job and its promoted position together
func (s *Storage) DeleteScrapedJob(ctx context.Context, scrapedID int64) error {
	return postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE scraped_id = $1`, scrapedID); err != nil {
			return fmt.Errorf("failed to delete promoted position: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM scraped_positions WHERE id = $1`, scrapedID)
		if err != nil {
			return fmt.Errorf("failed to delete scraped job: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return domain.ErrPositionNotFound
		}
		return nil
	})
}
