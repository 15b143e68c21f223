// Package sweeper runs the data lifecycle passes: the daily sweep that
// stamps retention policies and retires expired events, the emergency
// pass that force-cleans records the daily sweep kept missing, and
// manual per-source cleanup.
//
// Every entrypoint is pure in the scheduling sense: it runs once when
// called and owns no timers. External schedulers (cron, systemd, CI)
// decide cadence. Entrypoints never fail their caller; errors surface
// as a failed-status result with the error string attached.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dxbevents/lifecycle/internal/retention"
	"github.com/dxbevents/lifecycle/internal/storage"
	"github.com/dxbevents/lifecycle/internal/types"
)

// Sweeper executes lifecycle passes over the event store
type Sweeper struct {
	store    storage.Storage
	registry *retention.Registry
	cfg      Config
	now      func() time.Time
}

// New creates a sweeper bound to the given store and retention registry
func New(store storage.Storage, registry *retention.Registry, cfg Config) (*Sweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Sweeper{
		store:    store,
		registry: registry,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// RunDailySweep executes one full lifecycle sweep:
//
//  1. backfill retention stamps onto records that are missing them
//  2. soft-delete expired records, each tier swept concurrently and in
//     isolation (a failing tier is recorded, not fatal)
//  3. purge soft-deleted records past the grace period, rate limited
//  4. collect per-source retention statistics
func (s *Sweeper) RunDailySweep(ctx context.Context) *types.SweepResult {
	now := s.now().UTC()
	result := &types.SweepResult{
		Status:         types.ResultCompleted,
		CleanupResults: make(map[types.Tier]int),
		Timestamp:      now,
	}
	log.Printf("[SWEEP] Starting daily sweep (%s)", s.cfg)

	stamped, err := s.backfillRetention(ctx, now)
	result.PoliciesStamped = stamped
	if err != nil {
		return failSweep(result, fmt.Errorf("retention backfill: %w", err))
	}

	s.softDeleteExpiredTiers(ctx, now, result)

	purged, err := s.purgeWithGrace(ctx, now)
	result.HardDeleted = purged
	if err != nil {
		return failSweep(result, fmt.Errorf("purge: %w", err))
	}

	stats, err := s.RetentionStats(ctx)
	if err != nil {
		return failSweep(result, fmt.Errorf("retention stats: %w", err))
	}
	result.RetentionStats = stats

	log.Printf("[SWEEP] Daily sweep complete: stamped=%d cleaned=%v purged=%d",
		result.PoliciesStamped, result.CleanupResults, result.HardDeleted)
	return result
}

// RunBackfill stamps retention policies onto records missing them
// without running the rest of the sweep. Returns how many were stamped.
func (s *Sweeper) RunBackfill(ctx context.Context) (int, error) {
	return s.backfillRetention(ctx, s.now().UTC())
}

// backfillRetention stamps retention policy fields onto records that
// are missing them, in bounded batches
func (s *Sweeper) backfillRetention(ctx context.Context, now time.Time) (int, error) {
	stamped := 0
	for {
		if err := ctx.Err(); err != nil {
			return stamped, err
		}
		events, err := s.store.ListMissingRetention(ctx, s.cfg.BatchSize)
		if err != nil {
			return stamped, err
		}
		if len(events) == 0 {
			return stamped, nil
		}
		for _, ev := range events {
			s.registry.Stamp(ev)
			if err := s.store.UpdateRetentionFields(ctx, ev.ID, ev.SourcePriority,
				ev.RetentionDays, ev.DeleteAfter, now); err != nil {
				return stamped, err
			}
			stamped++
			if stamped >= s.cfg.BackfillLimit {
				log.Printf("[SWEEP] Backfill limit %d reached, deferring the rest", s.cfg.BackfillLimit)
				return stamped, nil
			}
		}
		if len(events) < s.cfg.BatchSize {
			return stamped, nil
		}
	}
}

// softDeleteExpiredTiers retires expired active records, sweeping the
// three tiers concurrently. Tiers are isolated: one tier's failure is
// recorded in result.TierErrors and never cancels its siblings. Per-tier
// counts land in result.CleanupResults, partial counts included.
func (s *Sweeper) softDeleteExpiredTiers(ctx context.Context, now time.Time, result *types.SweepResult) {
	// Plain errgroup.Group, not WithContext: cancellation would abort
	// the sibling tiers' in-flight batches
	var g errgroup.Group
	var mu sync.Mutex

	for _, tier := range types.AllTiers() {
		tier := tier
		g.Go(func() error {
			total := 0
			var tierErr error
			for {
				n, err := s.store.SoftDeleteExpired(ctx, tier, now, now, s.cfg.BatchSize)
				if err != nil {
					tierErr = err
					break
				}
				total += n
				if n < s.cfg.BatchSize {
					break
				}
			}
			if total > 0 {
				log.Printf("[SWEEP] Soft-deleted %d expired %s-tier events", total, tier)
			}
			mu.Lock()
			result.CleanupResults[tier] = total
			if tierErr != nil {
				if result.TierErrors == nil {
					result.TierErrors = make(map[types.Tier]string)
				}
				result.TierErrors[tier] = tierErr.Error()
			}
			mu.Unlock()
			if tierErr != nil {
				log.Printf("[SWEEP] %s tier sweep failed after %d events: %v", tier, total, tierErr)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// purgeWithGrace physically removes soft-deleted records past the grace
// period, throttled to PurgeRatePerSec
func (s *Sweeper) purgeWithGrace(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.cfg.GracePeriod)
	limiter := rate.NewLimiter(rate.Limit(s.cfg.PurgeRatePerSec), s.cfg.BatchSize)

	purged := 0
	for {
		if err := limiter.WaitN(ctx, s.cfg.BatchSize); err != nil {
			return purged, err
		}
		n, err := s.store.PurgeSoftDeleted(ctx, cutoff, s.cfg.BatchSize)
		if err != nil {
			return purged, err
		}
		purged += n
		if n < s.cfg.BatchSize {
			return purged, nil
		}
	}
}

// RetentionStats reports per-source retention state for every source
// the policy configuration knows about
func (s *Sweeper) RetentionStats(ctx context.Context) (map[string]types.SourceRetentionStats, error) {
	sourceStats, err := s.store.GetSourceStats(ctx, s.now().UTC())
	if err != nil {
		return nil, err
	}

	stats := make(map[string]types.SourceRetentionStats)
	for _, tier := range types.AllTiers() {
		for _, source := range s.registry.Sources(tier) {
			entry := types.SourceRetentionStats{
				RetentionDays: s.registry.WindowFor(tier),
				Priority:      tier,
			}
			if st, ok := sourceStats[source]; ok {
				entry.ActiveEvents = st.Active
				entry.ExpiredEvents = st.SoftDeleted
			}
			stats[source] = entry
		}
	}
	return stats, nil
}

// RunManualCleanup soft-deletes a single source's events whose
// delete_after has passed or was never stamped. Used when a source
// starts producing garbage and cannot wait for the daily sweep.
func (s *Sweeper) RunManualCleanup(ctx context.Context, sourceName string) *types.ManualCleanupResult {
	now := s.now().UTC()
	result := &types.ManualCleanupResult{
		Status:    types.ResultCompleted,
		Source:    sourceName,
		Priority:  s.registry.PriorityFor(sourceName),
		Timestamp: now,
	}
	if sourceName == "" {
		result.Status = types.ResultFailed
		result.Error = "source name is required"
		return result
	}

	cleaned, err := s.store.SoftDeleteForSource(ctx, sourceName, now)
	result.EventsCleaned = cleaned
	if err != nil {
		result.Status = types.ResultFailed
		result.Error = err.Error()
		log.Printf("[SWEEP] Manual cleanup for %s failed: %v", sourceName, err)
		return result
	}

	log.Printf("[SWEEP] Manual cleanup for %s (%s tier): %d events", sourceName, result.Priority, cleaned)
	return result
}

func failSweep(result *types.SweepResult, err error) *types.SweepResult {
	result.Status = types.ResultFailed
	result.Error = err.Error()
	log.Printf("[SWEEP] Daily sweep failed: %v", err)
	return result
}
