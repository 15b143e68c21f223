package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/dxbevents/lifecycle/internal/types"
)

// SoftDeleteExpired moves active events of one tier whose delete_after
// has passed the cutoff into the soft_deleted state. Returns the number
// of rows transitioned. The update is conditional on current status, so
// repeating it is a no-op.
func (s *SQLiteStorage) SoftDeleteExpired(ctx context.Context, tier types.Tier, cutoff, now time.Time, limit int) (int, error) {
	query := `
		UPDATE events
		SET status = 'soft_deleted', deleted_at = ?, last_updated = ?
		WHERE id IN (
			SELECT id FROM events
			WHERE status = 'active' AND source_priority = ?
			AND delete_after IS NOT NULL AND delete_after < ?
			ORDER BY delete_after ASC
			LIMIT ?
		)
	`
	result, err := s.db.ExecContext(ctx, query, now, now, string(tier), cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to soft-delete expired %s-tier events: %w", tier, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

// SoftDeleteOverdue force-transitions every active event whose
// delete_after precedes the cutoff, regardless of tier. Used by the
// emergency path for events that slipped past the daily sweep.
func (s *SQLiteStorage) SoftDeleteOverdue(ctx context.Context, cutoff, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET status = 'soft_deleted', deleted_at = ?, last_updated = ?
		WHERE status = 'active' AND delete_after IS NOT NULL AND delete_after < ?
	`, now, now, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to soft-delete overdue events: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

// SoftDeleteForSource soft-deletes active events from one source whose
// delete_after has passed or was never stamped.
func (s *SQLiteStorage) SoftDeleteForSource(ctx context.Context, sourceName string, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE events
		SET status = 'soft_deleted', deleted_at = ?, last_updated = ?
		WHERE status = 'active' AND source_name = ?
		AND (delete_after IS NULL OR delete_after < ?)
	`, now, now, sourceName, now)
	if err != nil {
		return 0, fmt.Errorf("failed to soft-delete events for source %s: %w", sourceName, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

// PurgeSoftDeleted physically removes soft-deleted events whose
// deleted_at precedes the cutoff, up to limit rows per call so the
// caller can pace large purges.
func (s *SQLiteStorage) PurgeSoftDeleted(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	query := `
		DELETE FROM events
		WHERE id IN (
			SELECT id FROM events
			WHERE status = 'soft_deleted' AND deleted_at IS NOT NULL AND deleted_at < ?
			ORDER BY deleted_at ASC
			LIMIT ?
		)
	`
	result, err := s.db.ExecContext(ctx, query, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to purge soft-deleted events: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}
