package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BroadcastMarkerKey is the config row holding the last broadcast time
const BroadcastMarkerKey = "scraping_automation"

// GetLastBroadcast returns the last broadcast time, or nil if none was recorded
func (s *Storage) GetLastBroadcast(ctx context.Context) (*time.Time, error) {
	var last sql.NullTime

	err := s.db.GetContext(ctx, &last, `SELECT last_updated_time FROM config WHERE key = $1`, BroadcastMarkerKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read broadcast marker: %w", err)
	}

	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

// SetLastBroadcast records at as the last broadcast time
func (s *Storage) SetLastBroadcast(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, last_updated_time) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET last_updated_time = EXCLUDED.last_updated_time
	`, BroadcastMarkerKey, at)
	if err != nil {
		return fmt.Errorf("failed to update broadcast marker: %w", err)
	}

	return nil
}
