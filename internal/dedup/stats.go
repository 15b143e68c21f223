package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/dxbevents/lifecycle/internal/storage"
)

// Statistics summarizes duplicate detection activity
type Statistics struct {
	ActiveEvents      int                   `json:"active_events"`
	TodayDuplicates   int                   `json:"today_duplicates"`
	WeekDuplicates    int                   `json:"week_duplicates"`
	TotalDuplicates   int                   `json:"total_duplicates"`
	TopSources        []storage.SourceCount `json:"top_duplicate_sources"`
	DeduplicationRate string                `json:"deduplication_rate"`
}

// Stats reports duplicate detection counts for today, the trailing
// week, and all time, plus the sources producing the most duplicates.
func (e *Engine) Stats(ctx context.Context) (*Statistics, error) {
	now := e.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := today.AddDate(0, 0, -7)

	counts, err := e.store.ActiveTierCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active events: %w", err)
	}

	stats := &Statistics{ActiveEvents: counts.Total}

	if stats.TodayDuplicates, err = e.store.CountDuplicateLogsSince(ctx, today); err != nil {
		return nil, fmt.Errorf("failed to count today's duplicates: %w", err)
	}
	if stats.WeekDuplicates, err = e.store.CountDuplicateLogsSince(ctx, weekAgo); err != nil {
		return nil, fmt.Errorf("failed to count week's duplicates: %w", err)
	}
	if stats.TotalDuplicates, err = e.store.CountDuplicateLogsSince(ctx, time.Time{}); err != nil {
		return nil, fmt.Errorf("failed to count total duplicates: %w", err)
	}
	if stats.TopSources, err = e.store.TopDuplicateSources(ctx, 5); err != nil {
		return nil, fmt.Errorf("failed to rank duplicate sources: %w", err)
	}

	denominator := stats.TotalDuplicates + stats.ActiveEvents
	if denominator < 1 {
		denominator = 1
	}
	stats.DeduplicationRate = fmt.Sprintf("%.1f%%",
		float64(stats.TotalDuplicates)/float64(denominator)*100)

	return stats, nil
}
