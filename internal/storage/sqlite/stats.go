package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dxbevents/lifecycle/internal/types"
)

// TierCounts breaks the active event population down by retention tier
type TierCounts struct {
	Total  int
	High   int
	Medium int
	Low    int
}

// Count returns the active total for one tier
func (c *TierCounts) Count(tier types.Tier) int {
	switch tier {
	case types.TierHigh:
		return c.High
	case types.TierMedium:
		return c.Medium
	case types.TierLow:
		return c.Low
	}
	return 0
}

// SourceStats aggregates per-source event counts
type SourceStats struct {
	SourceName  string
	Active      int
	SoftDeleted int
	Overdue     int
	OldestStart *time.Time
	NewestStart *time.Time
}

// ActiveTierCounts counts active events per retention tier
func (s *SQLiteStorage) ActiveTierCounts(ctx context.Context) (*TierCounts, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_priority, COUNT(*) FROM events
		WHERE status = 'active'
		GROUP BY source_priority
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count active events by tier: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := &TierCounts{}
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, fmt.Errorf("failed to scan tier count: %w", err)
		}
		counts.Total += n
		switch types.Tier(tier) {
		case types.TierHigh:
			counts.High = n
		case types.TierMedium:
			counts.Medium = n
		case types.TierLow:
			counts.Low = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tier counts: %w", err)
	}
	return counts, nil
}

// CountActiveOverdue counts active events whose delete_after has passed
func (s *SQLiteStorage) CountActiveOverdue(ctx context.Context, asOf time.Time) (int, error) {
	return s.countOne(ctx, `
		SELECT COUNT(*) FROM events
		WHERE status = 'active' AND delete_after IS NOT NULL AND delete_after < ?
	`, asOf)
}

// CountSeverelyOverdue counts active events whose delete_after precedes
// the cutoff, i.e. events the routine sweep has repeatedly missed
func (s *SQLiteStorage) CountSeverelyOverdue(ctx context.Context, cutoff time.Time) (int, error) {
	return s.countOne(ctx, `
		SELECT COUNT(*) FROM events
		WHERE status = 'active' AND delete_after IS NOT NULL AND delete_after < ?
	`, cutoff)
}

// CountStuckSoftDeleted counts soft-deleted events that should have been
// purged before the cutoff
func (s *SQLiteStorage) CountStuckSoftDeleted(ctx context.Context, cutoff time.Time) (int, error) {
	return s.countOne(ctx, `
		SELECT COUNT(*) FROM events
		WHERE status = 'soft_deleted' AND deleted_at IS NOT NULL AND deleted_at < ?
	`, cutoff)
}

// CountRecentlyDeleted counts events soft-deleted since the given time
func (s *SQLiteStorage) CountRecentlyDeleted(ctx context.Context, since time.Time) (int, error) {
	return s.countOne(ctx, `
		SELECT COUNT(*) FROM events
		WHERE status = 'soft_deleted' AND deleted_at IS NOT NULL AND deleted_at >= ?
	`, since)
}

// CountMissingRetention counts active events lacking retention stamps
func (s *SQLiteStorage) CountMissingRetention(ctx context.Context) (int, error) {
	return s.countOne(ctx, `
		SELECT COUNT(*) FROM events
		WHERE status = 'active'
		AND (source_priority = '' OR retention_days = 0
		     OR (delete_after IS NULL AND end_date IS NOT NULL))
	`)
}

// GetSourceStats aggregates per-source counts across all events
func (s *SQLiteStorage) GetSourceStats(ctx context.Context, asOf time.Time) (map[string]*SourceStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_name,
			SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'soft_deleted' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'active' AND delete_after IS NOT NULL AND delete_after < ? THEN 1 ELSE 0 END),
			MIN(start_date),
			MAX(start_date)
		FROM events
		GROUP BY source_name
	`, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to compute source stats: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make(map[string]*SourceStats)
	for rows.Next() {
		var st SourceStats
		var oldest, newest sql.NullTime
		if err := rows.Scan(&st.SourceName, &st.Active, &st.SoftDeleted, &st.Overdue, &oldest, &newest); err != nil {
			return nil, fmt.Errorf("failed to scan source stats: %w", err)
		}
		if oldest.Valid {
			t := oldest.Time
			st.OldestStart = &t
		}
		if newest.Valid {
			t := newest.Time
			st.NewestStart = &t
		}
		stats[st.SourceName] = &st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source stats: %w", err)
	}
	return stats, nil
}

func (s *SQLiteStorage) countOne(ctx context.Context, query string, args ...interface{}) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}
