// Package monitor watches storage health: event population balance,
// cleanup pipeline lag, cost projection, and the weekly report with
// week-over-week trends.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/dxbevents/lifecycle/internal/retention"
	"github.com/dxbevents/lifecycle/internal/storage"
	"github.com/dxbevents/lifecycle/internal/types"
)

// Health statuses reported by the storage health check
const (
	StatusHealthy        = "healthy"
	StatusNeedsAttention = "needs_attention"
)

// Cleanup efficiency verdicts
const (
	EfficiencyGood           = "good"
	EfficiencyNeedsAttention = "needs_attention"
)

// StorageStats breaks the active event population down by tier
type StorageStats struct {
	TotalEvents    int `json:"total_events"`
	HighPriority   int `json:"high_priority_events"`
	MediumPriority int `json:"medium_priority_events"`
	LowPriority    int `json:"low_priority_events"`
	Unknown        int `json:"unknown_priority_events"`
}

// HealthCheck is the result of one storage health evaluation
type HealthCheck struct {
	Status    string       `json:"status"`
	Stats     StorageStats `json:"stats"`
	Alerts    []string     `json:"alerts,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// CleanupEfficiency reports how well the lifecycle sweeps are keeping up
type CleanupEfficiency struct {
	OverdueEvents     int    `json:"overdue_events"`
	RecentlyDeleted   int    `json:"recently_deleted"`
	PendingHardDelete int    `json:"pending_hard_delete"`
	Efficiency        string `json:"cleanup_efficiency"`
}

// CostEstimate projects monthly storage cost from the event count
type CostEstimate struct {
	TotalEvents             int     `json:"total_events"`
	EstimatedStorageGB      float64 `json:"estimated_storage_gb"`
	EstimatedMonthlyCostUSD float64 `json:"estimated_monthly_cost_usd"`
	CostPerEventUSD         float64 `json:"cost_per_event_usd"`
}

// SourceBreakdown describes one source's contribution to the collection
type SourceBreakdown struct {
	Priority      types.Tier `json:"priority"`
	ActiveEvents  int        `json:"active_events"`
	RetentionDays int        `json:"retention_days"`
	OldestEvent   *time.Time `json:"oldest_event,omitempty"`
	NewestEvent   *time.Time `json:"newest_event,omitempty"`
}

// Trends compares this week's totals against the previous snapshot
type Trends struct {
	TotalEventsChange        int     `json:"total_events_change"`
	TotalEventsChangePercent float64 `json:"total_events_change_percent"`
}

// WeeklyReport is the full weekly storage report
type WeeklyReport struct {
	ReportDate        time.Time                  `json:"report_date"`
	HealthStatus      string                     `json:"health_status"`
	StorageStats      StorageStats               `json:"storage_stats"`
	CleanupEfficiency CleanupEfficiency          `json:"cleanup_efficiency"`
	CostEstimate      CostEstimate               `json:"cost_estimate"`
	SourceBreakdown   map[string]SourceBreakdown `json:"source_breakdown"`
	Alerts            []string                   `json:"alerts,omitempty"`
	Recommendations   []string                   `json:"recommendations,omitempty"`
	Trends            *Trends                    `json:"trends,omitempty"`
}

// Monitor evaluates storage health against configured thresholds
type Monitor struct {
	store    storage.Storage
	registry *retention.Registry
	cfg      Config
	now      func() time.Time
}

// New creates a monitor bound to the given store and retention registry
func New(store storage.Storage, registry *retention.Registry, cfg Config) (*Monitor, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Monitor{
		store:    store,
		registry: registry,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// CheckStorageHealth evaluates the active collection against the
// alerting thresholds. Any alert flips the status to needs_attention.
func (m *Monitor) CheckStorageHealth(ctx context.Context) (*HealthCheck, error) {
	now := m.now().UTC()

	stats, err := m.StorageStats(ctx)
	if err != nil {
		return nil, err
	}

	var alerts []string

	if stats.TotalEvents > m.cfg.MaxActiveEvents {
		alerts = append(alerts, "High event count - consider more aggressive cleanup")
	}

	if stats.TotalEvents > 0 {
		highRatio := float64(stats.HighPriority) / float64(stats.TotalEvents)
		if highRatio < m.cfg.MinHighTierRatio {
			alerts = append(alerts, "Too many low-priority events - review source strategy")
		}
	}

	overdue, err := m.store.CountActiveOverdue(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue events: %w", err)
	}
	if overdue > m.cfg.MaxOverdue {
		alerts = append(alerts, fmt.Sprintf("%d events overdue for deletion - check cleanup task", overdue))
	}

	missing, err := m.store.CountMissingRetention(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count unstamped events: %w", err)
	}
	if missing > 0 {
		alerts = append(alerts, fmt.Sprintf("%d events missing retention policies", missing))
	}

	status := StatusHealthy
	if len(alerts) > 0 {
		status = StatusNeedsAttention
	}
	return &HealthCheck{
		Status:    status,
		Stats:     *stats,
		Alerts:    alerts,
		Timestamp: now,
	}, nil
}

// StorageStats returns the active event population broken down by tier
func (m *Monitor) StorageStats(ctx context.Context) (*StorageStats, error) {
	counts, err := m.store.ActiveTierCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active events: %w", err)
	}
	return &StorageStats{
		TotalEvents:    counts.Total,
		HighPriority:   counts.High,
		MediumPriority: counts.Medium,
		LowPriority:    counts.Low,
		Unknown:        counts.Total - counts.High - counts.Medium - counts.Low,
	}, nil
}

// DetailedSourceStats breaks down the collection per source, annotated
// with each source's retention tier and window
func (m *Monitor) DetailedSourceStats(ctx context.Context) (map[string]SourceBreakdown, error) {
	sourceStats, err := m.store.GetSourceStats(ctx, m.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get source stats: %w", err)
	}

	breakdown := make(map[string]SourceBreakdown, len(sourceStats))
	for name, st := range sourceStats {
		tier := m.registry.PriorityFor(name)
		breakdown[name] = SourceBreakdown{
			Priority:      tier,
			ActiveEvents:  st.Active,
			RetentionDays: m.registry.WindowFor(tier),
			OldestEvent:   st.OldestStart,
			NewestEvent:   st.NewestStart,
		}
	}
	return breakdown, nil
}

// CleanupEfficiencyStats reports the cleanup pipeline's current lag
func (m *Monitor) CleanupEfficiencyStats(ctx context.Context) (*CleanupEfficiency, error) {
	now := m.now().UTC()

	overdue, err := m.store.CountActiveOverdue(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue events: %w", err)
	}
	recent, err := m.store.CountRecentlyDeleted(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent deletions: %w", err)
	}
	pending, err := m.store.CountStuckSoftDeleted(ctx, now.Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to count pending purges: %w", err)
	}

	efficiency := EfficiencyGood
	if overdue >= m.cfg.MaxEfficientOverdue {
		efficiency = EfficiencyNeedsAttention
	}
	return &CleanupEfficiency{
		OverdueEvents:     overdue,
		RecentlyDeleted:   recent,
		PendingHardDelete: pending,
		Efficiency:        efficiency,
	}, nil
}

// StorageCostEstimate projects monthly storage cost from the active
// event count and the configured size and price assumptions
func (m *Monitor) StorageCostEstimate(ctx context.Context) (*CostEstimate, error) {
	stats, err := m.StorageStats(ctx)
	if err != nil {
		return nil, err
	}

	storageGB := float64(stats.TotalEvents) * m.cfg.AvgDocSizeKB / (1024 * 1024)
	monthlyCost := storageGB * m.cfg.CostPerGBMonth

	estimate := &CostEstimate{
		TotalEvents:             stats.TotalEvents,
		EstimatedStorageGB:      round(storageGB, 4),
		EstimatedMonthlyCostUSD: round(monthlyCost, 4),
	}
	if stats.TotalEvents > 0 {
		estimate.CostPerEventUSD = round(monthlyCost/float64(stats.TotalEvents), 6)
	}
	return estimate, nil
}

func round(v float64, places int) float64 {
	scale := 1.0
	for i := 0; i < places; i++ {
		scale *= 10
	}
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}
