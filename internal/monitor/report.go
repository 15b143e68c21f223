package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dxbevents/lifecycle/internal/storage"
	"github.com/dxbevents/lifecycle/internal/types"
)

// GenerateWeeklyReport composes the full weekly storage report:
// health check, per-source breakdown, cleanup efficiency, cost
// projection, recommendations, and week-over-week trends. It also
// snapshots this week's totals so next week's report can compare
// against them; the snapshot is keyed by week start and re-running the
// report within the same week replaces it.
func (m *Monitor) GenerateWeeklyReport(ctx context.Context) (*WeeklyReport, error) {
	now := m.now().UTC()

	health, err := m.CheckStorageHealth(ctx)
	if err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}
	sources, err := m.DetailedSourceStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("source stats: %w", err)
	}
	cleanup, err := m.CleanupEfficiencyStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("cleanup stats: %w", err)
	}
	cost, err := m.StorageCostEstimate(ctx)
	if err != nil {
		return nil, fmt.Errorf("cost estimate: %w", err)
	}

	report := &WeeklyReport{
		ReportDate:        now,
		HealthStatus:      health.Status,
		StorageStats:      health.Stats,
		CleanupEfficiency: *cleanup,
		CostEstimate:      *cost,
		SourceBreakdown:   sources,
		Alerts:            health.Alerts,
		Recommendations:   m.recommendations(health.Stats, cleanup, cost, sources),
	}

	weekStart := types.WeekStart(now)
	report.Trends = m.weekOverWeek(ctx, weekStart, health.Stats.TotalEvents)

	snapshot := &types.WeeklyStats{
		WeekStart:    weekStart,
		TotalEvents:  health.Stats.TotalEvents,
		HighEvents:   health.Stats.HighPriority,
		MediumEvents: health.Stats.MediumPriority,
		LowEvents:    health.Stats.LowPriority,
		RecordedAt:   now,
	}
	if err := m.store.UpsertWeeklyStats(ctx, snapshot); err != nil {
		// The report is still useful without the snapshot
		log.Printf("[MONITOR] Failed to record weekly snapshot: %v", err)
	}

	log.Printf("[MONITOR] Weekly report: %d events, health %s, est. $%.2f/month",
		report.StorageStats.TotalEvents, report.HealthStatus,
		report.CostEstimate.EstimatedMonthlyCostUSD)
	return report, nil
}

// recommendations derives operator guidance from the report inputs
func (m *Monitor) recommendations(stats StorageStats, cleanup *CleanupEfficiency, cost *CostEstimate, sources map[string]SourceBreakdown) []string {
	var recs []string

	if stats.TotalEvents > m.cfg.ReportMaxEvents {
		recs = append(recs, "Consider more aggressive cleanup for low-priority sources")
	}
	if cleanup.OverdueEvents > m.cfg.ReportMaxOverdue {
		recs = append(recs, "Cleanup tasks may need optimization - check sweep scheduling")
	}
	if cost.EstimatedMonthlyCostUSD > m.cfg.ReportMaxMonthlyCost {
		recs = append(recs, "Storage costs exceeding target - review retention policies")
	}

	highPrioritySources := 0
	for _, src := range sources {
		if src.Priority == types.TierHigh {
			highPrioritySources++
		}
	}
	if highPrioritySources < m.cfg.MinHighPrioritySources {
		recs = append(recs, "Consider promoting more sources to high priority for better coverage")
	}
	return recs
}

// weekOverWeek compares this week's total against the most recent
// earlier snapshot. No prior snapshot means no trend.
func (m *Monitor) weekOverWeek(ctx context.Context, weekStart time.Time, currentTotal int) *Trends {
	previous, err := m.store.GetLatestWeeklyStats(ctx, weekStart)
	if err != nil {
		if !storage.IsNotFound(err) {
			log.Printf("[MONITOR] Failed to load previous weekly snapshot: %v", err)
		}
		return nil
	}

	trends := &Trends{TotalEventsChange: currentTotal - previous.TotalEvents}
	if previous.TotalEvents > 0 {
		trends.TotalEventsChangePercent = float64(trends.TotalEventsChange) / float64(previous.TotalEvents) * 100
	}
	return trends
}
