package sweeper

import (
	"context"
	"fmt"
	"log"

	"github.com/dxbevents/lifecycle/internal/types"
)

// RunEmergencyCheck finds and force-cleans records the daily sweep has
// repeatedly missed: active records severely past their delete_after
// are force soft-deleted, and records stuck in soft_deleted well past
// the grace period are force-purged. The result's NeedsAttention flag
// reports danger-threshold breaches for external monitoring.
func (s *Sweeper) RunEmergencyCheck(ctx context.Context) *types.EmergencyResult {
	now := s.now().UTC()
	result := &types.EmergencyResult{
		Status:    types.ResultCompleted,
		Timestamp: now,
	}

	severeCutoff := now.Add(-s.cfg.SevereOverdueAge)
	stuckCutoff := now.Add(-s.cfg.StuckDeletedAge)

	overdue, err := s.store.CountSeverelyOverdue(ctx, severeCutoff)
	if err != nil {
		return failEmergency(result, fmt.Errorf("counting severely overdue: %w", err))
	}
	result.SeverelyOverdueFound = overdue

	stuck, err := s.store.CountStuckSoftDeleted(ctx, stuckCutoff)
	if err != nil {
		return failEmergency(result, fmt.Errorf("counting stuck deleted: %w", err))
	}
	result.StuckDeletedFound = stuck

	if overdue > 0 {
		n, err := s.store.SoftDeleteOverdue(ctx, severeCutoff, now)
		if err != nil {
			return failEmergency(result, fmt.Errorf("force soft-delete: %w", err))
		}
		result.ForceSoftDeleted = n
		result.EmergencyActions = append(result.EmergencyActions,
			fmt.Sprintf("Force deleted %d severely overdue events", n))
	}

	if stuck > 0 {
		purged := 0
		for {
			n, err := s.store.PurgeSoftDeleted(ctx, stuckCutoff, s.cfg.BatchSize)
			if err != nil {
				result.ForceHardDeleted = purged
				return failEmergency(result, fmt.Errorf("force purge: %w", err))
			}
			purged += n
			if n < s.cfg.BatchSize {
				break
			}
		}
		result.ForceHardDeleted = purged
		result.EmergencyActions = append(result.EmergencyActions,
			fmt.Sprintf("Hard deleted %d stuck events", purged))
	}

	counts, err := s.store.ActiveTierCounts(ctx)
	if err != nil {
		return failEmergency(result, fmt.Errorf("counting active events: %w", err))
	}
	result.TotalActiveEvents = counts.Total

	result.NeedsAttention = overdue > s.cfg.DangerOverdue ||
		stuck > s.cfg.DangerStuck ||
		counts.Total > s.cfg.DangerActive

	if len(result.EmergencyActions) > 0 {
		log.Printf("[SWEEP] Emergency cleanup performed: %v", result.EmergencyActions)
	}
	if result.NeedsAttention {
		log.Printf("[SWEEP] Emergency check needs attention: overdue=%d stuck=%d active=%d",
			overdue, stuck, counts.Total)
	}
	return result
}

func failEmergency(result *types.EmergencyResult, err error) *types.EmergencyResult {
	result.Status = types.ResultFailed
	result.Error = err.Error()
	log.Printf("[SWEEP] Emergency check failed: %v", err)
	return result
}
