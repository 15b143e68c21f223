package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dxbevents/lifecycle/internal/types"
)

// SourceCount pairs a source name with a duplicate tally
type SourceCount struct {
	SourceName string
	Count      int
}

// InsertDuplicateLog appends one duplicate decision to the audit log
func (s *SQLiteStorage) InsertDuplicateLog(ctx context.Context, entry *types.DuplicateLog) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid duplicate log: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO duplicate_logs (
			new_title, new_source_name, new_source_id,
			existing_id, existing_title, similarity_score, action, detected_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.NewTitle, entry.NewSourceName, entry.NewSourceID,
		entry.ExistingID, entry.ExistingTitle, entry.SimilarityScore,
		entry.Action, entry.DetectedAt)
	if err != nil {
		return fmt.Errorf("failed to insert duplicate log: %w", err)
	}
	return nil
}

// CountDuplicateLogsSince counts duplicate decisions recorded since the
// given time
func (s *SQLiteStorage) CountDuplicateLogsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM duplicate_logs WHERE detected_at >= ?`, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count duplicate logs: %w", err)
	}
	return n, nil
}

// TopDuplicateSources returns the sources producing the most duplicates,
// highest first
func (s *SQLiteStorage) TopDuplicateSources(ctx context.Context, limit int) ([]SourceCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT new_source_name, COUNT(*) AS n FROM duplicate_logs
		GROUP BY new_source_name
		ORDER BY n DESC, new_source_name ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top duplicate sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var counts []SourceCount
	for rows.Next() {
		var sc SourceCount
		if err := rows.Scan(&sc.SourceName, &sc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate source count: %w", err)
		}
		counts = append(counts, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating duplicate sources: %w", err)
	}
	return counts, nil
}

// UpsertWeeklyStats writes the snapshot for its week, replacing any
// earlier snapshot recorded for the same week start
func (s *SQLiteStorage) UpsertWeeklyStats(ctx context.Context, stats *types.WeeklyStats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weekly_stats (
			week_start, total_events, high_events, medium_events, low_events, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(week_start) DO UPDATE SET
			total_events = excluded.total_events,
			high_events = excluded.high_events,
			medium_events = excluded.medium_events,
			low_events = excluded.low_events,
			recorded_at = excluded.recorded_at
	`, stats.WeekStart, stats.TotalEvents, stats.HighEvents,
		stats.MediumEvents, stats.LowEvents, stats.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert weekly stats: %w", err)
	}
	return nil
}

// GetLatestWeeklyStats returns the most recent snapshot for a week
// starting strictly before the given time, or ErrNotFound
func (s *SQLiteStorage) GetLatestWeeklyStats(ctx context.Context, before time.Time) (*types.WeeklyStats, error) {
	var stats types.WeeklyStats
	err := s.db.QueryRowContext(ctx, `
		SELECT week_start, total_events, high_events, medium_events, low_events, recorded_at
		FROM weekly_stats
		WHERE week_start < ?
		ORDER BY week_start DESC
		LIMIT 1
	`, before).Scan(&stats.WeekStart, &stats.TotalEvents, &stats.HighEvents,
		&stats.MediumEvents, &stats.LowEvents, &stats.RecordedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest weekly stats: %w", err)
	}
	return &stats, nil
}
