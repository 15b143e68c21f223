package sweeper

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dxbevents/lifecycle/internal/retention"
	"github.com/dxbevents/lifecycle/internal/storage"
	"github.com/dxbevents/lifecycle/internal/types"
)

func newTestSweeper(t *testing.T, now time.Time) (*Sweeper, storage.Storage) {
	t.Helper()
	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry, err := retention.NewRegistry(retention.DefaultConfig())
	require.NoError(t, err)

	sw, err := New(store, registry, DefaultConfig())
	require.NoError(t, err)
	sw.now = func() time.Time { return now }
	return sw, store
}

func makeEvent(title, source string, start time.Time) *types.Event {
	created := start.Add(-72 * time.Hour)
	return &types.Event{
		ID:          uuid.NewString(),
		Title:       title,
		Venue:       types.Venue{Name: "Venue for " + title},
		StartDate:   start,
		SourceName:  source,
		SourceID:    uuid.NewString(),
		Status:      types.StatusActive,
		CreatedAt:   created,
		LastUpdated: created,
	}
}

func stamp(t *testing.T, ev *types.Event, tier types.Tier, days int, deleteAfter time.Time) {
	t.Helper()
	ev.SourcePriority = tier
	ev.RetentionDays = days
	ev.DeleteAfter = &deleteAfter
}

func TestNewValidation(t *testing.T) {
	registry, err := retention.NewRegistry(retention.DefaultConfig())
	require.NoError(t, err)

	_, err = New(nil, registry, DefaultConfig())
	assert.Error(t, err)

	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	_, err = New(store, nil, DefaultConfig())
	assert.Error(t, err)

	bad := DefaultConfig()
	bad.BatchSize = 0
	_, err = New(store, registry, bad)
	assert.Error(t, err)
}

func TestRunDailySweep(t *testing.T) {
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)
	sw, store := newTestSweeper(t, now)
	ctx := context.Background()

	// Expired high-tier event: delete_after has passed
	expiredHigh := makeEvent("Ended Exhibition", "dubai_calendar", now.Add(-10*24*time.Hour))
	stamp(t, expiredHigh, types.TierHigh, 7, now.Add(-2*time.Hour))

	// Expired low-tier event
	expiredLow := makeEvent("Stale Social Post", "7g_media", now.Add(-5*24*time.Hour))
	stamp(t, expiredLow, types.TierLow, 1, now.Add(-30*time.Hour))

	// Active event still inside its window
	current := makeEvent("Upcoming Concert", "platinumlist", now.Add(48*time.Hour))
	stamp(t, current, types.TierHigh, 7, now.Add(10*24*time.Hour))

	// Unstamped event with a known end date: the sweep must backfill it
	end := now.Add(24 * time.Hour)
	unstamped := makeEvent("Fresh Meetup", "meetup_dubai", now.Add(20*time.Hour))
	unstamped.EndDate = &end

	// Soft-deleted past the 24h grace: the sweep must purge it
	purgeable := makeEvent("Long Gone", "social_rising", now.Add(-20*24*time.Hour))
	da := now.Add(-48 * time.Hour)
	purgeable.Status = types.StatusSoftDeleted
	purgeable.DeletedAt = &da

	// Soft-deleted inside grace: must survive
	graced := makeEvent("Just Deleted", "social_rising", now.Add(-10*24*time.Hour))
	ga := now.Add(-2 * time.Hour)
	graced.Status = types.StatusSoftDeleted
	graced.DeletedAt = &ga

	for _, ev := range []*types.Event{expiredHigh, expiredLow, current, unstamped, purgeable, graced} {
		require.NoError(t, store.InsertEvent(ctx, ev))
	}

	result := sw.RunDailySweep(ctx)
	require.Equal(t, types.ResultCompleted, result.Status, result.Error)

	assert.Equal(t, 1, result.PoliciesStamped)
	assert.Equal(t, 1, result.CleanupResults[types.TierHigh])
	assert.Equal(t, 1, result.CleanupResults[types.TierLow])
	assert.Equal(t, 0, result.CleanupResults[types.TierMedium])
	assert.Equal(t, 1, result.HardDeleted)

	// Expired events transitioned, not removed
	got, err := store.GetEvent(ctx, expiredHigh.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSoftDeleted, got.Status)

	// Current event untouched
	got, err = store.GetEvent(ctx, current.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, got.Status)

	// Backfilled event got medium-tier policy: end_date + 3 days
	got, err = store.GetEvent(ctx, unstamped.ID)
	require.NoError(t, err)
	assert.Equal(t, types.TierMedium, got.SourcePriority)
	assert.Equal(t, 3, got.RetentionDays)
	require.NotNil(t, got.DeleteAfter)
	assert.True(t, got.DeleteAfter.Equal(end.AddDate(0, 0, 3)))

	// Purged past grace, kept inside grace
	_, err = store.GetEvent(ctx, purgeable.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetEvent(ctx, graced.ID)
	assert.NoError(t, err)

	// Retention stats cover configured sources
	require.NotNil(t, result.RetentionStats)
	stats, ok := result.RetentionStats["platinumlist"]
	require.True(t, ok)
	assert.Equal(t, types.TierHigh, stats.Priority)
	assert.Equal(t, 7, stats.RetentionDays)
	assert.Equal(t, 1, stats.ActiveEvents)
}

func TestRunDailySweepIdempotent(t *testing.T) {
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)
	sw, store := newTestSweeper(t, now)
	ctx := context.Background()

	expired := makeEvent("Ended Exhibition", "dubai_calendar", now.Add(-10*24*time.Hour))
	stamp(t, expired, types.TierHigh, 7, now.Add(-2*time.Hour))
	require.NoError(t, store.InsertEvent(ctx, expired))

	first := sw.RunDailySweep(ctx)
	require.Equal(t, types.ResultCompleted, first.Status)
	assert.Equal(t, 1, first.CleanupResults[types.TierHigh])

	// A second sweep at the same instant finds nothing left to do
	second := sw.RunDailySweep(ctx)
	require.Equal(t, types.ResultCompleted, second.Status)
	assert.Equal(t, 0, second.CleanupResults[types.TierHigh])
	assert.Equal(t, 0, second.HardDeleted)
	assert.Equal(t, 0, second.PoliciesStamped)
}

func TestRunDailySweepFailureIsReported(t *testing.T) {
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)
	store, err := storage.NewStorage(context.Background(), &storage.Config{Path: ":memory:"})
	require.NoError(t, err)

	registry, err := retention.NewRegistry(retention.DefaultConfig())
	require.NoError(t, err)
	sw, err := New(store, registry, DefaultConfig())
	require.NoError(t, err)
	sw.now = func() time.Time { return now }

	require.NoError(t, store.Close())

	result := sw.RunDailySweep(context.Background())
	assert.Equal(t, types.ResultFailed, result.Status)
	assert.NotEmpty(t, result.Error)
}

// tierFailingStorage fails the expiry sweep for a single tier and
// delegates everything else to the real store
type tierFailingStorage struct {
	storage.Storage
	failTier types.Tier
}

func (s *tierFailingStorage) SoftDeleteExpired(ctx context.Context, tier types.Tier, cutoff, now time.Time, limit int) (int, error) {
	if tier == s.failTier {
		return 0, fmt.Errorf("simulated %s tier outage", tier)
	}
	return s.Storage.SoftDeleteExpired(ctx, tier, cutoff, now, limit)
}

func TestRunDailySweepTierFailureIsIsolated(t *testing.T) {
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)
	sw, store := newTestSweeper(t, now)
	ctx := context.Background()

	expiredHigh := makeEvent("High Tier Expired", "dubai_calendar", now.Add(-10*24*time.Hour))
	stamp(t, expiredHigh, types.TierHigh, 7, now.Add(-24*time.Hour))

	expiredMedium := makeEvent("Medium Tier Expired", "meetup_dubai", now.Add(-10*24*time.Hour))
	stamp(t, expiredMedium, types.TierMedium, 3, now.Add(-24*time.Hour))

	expiredLow := makeEvent("Low Tier Expired", "7g_media", now.Add(-10*24*time.Hour))
	stamp(t, expiredLow, types.TierLow, 1, now.Add(-24*time.Hour))

	purgeable := makeEvent("Awaiting Purge", "social_rising", now.Add(-20*24*time.Hour))
	stamp(t, purgeable, types.TierLow, 1, now.Add(-10*24*time.Hour))
	purgeable.Status = types.StatusSoftDeleted
	da := now.Add(-48 * time.Hour)
	purgeable.DeletedAt = &da

	for _, ev := range []*types.Event{expiredHigh, expiredMedium, expiredLow, purgeable} {
		require.NoError(t, store.InsertEvent(ctx, ev))
	}

	sw.store = &tierFailingStorage{Storage: store, failTier: types.TierHigh}
	result := sw.RunDailySweep(ctx)

	// The failed tier is recorded; the siblings and the purge and stats
	// phases still ran
	assert.Equal(t, types.ResultCompleted, result.Status)
	assert.Contains(t, result.TierErrors[types.TierHigh], "simulated")
	assert.Equal(t, 1, result.CleanupResults[types.TierMedium])
	assert.Equal(t, 1, result.CleanupResults[types.TierLow])
	assert.Equal(t, 1, result.HardDeleted)
	assert.NotNil(t, result.RetentionStats)

	// The high-tier event was untouched and a later sweep can retire it
	kept, err := store.GetEvent(ctx, expiredHigh.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, kept.Status)
}

func TestRunEmergencyCheck(t *testing.T) {
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)
	sw, store := newTestSweeper(t, now)
	ctx := context.Background()

	// Severely overdue: more than 7 days past delete_after
	severe := makeEvent("Escaped the Sweep", "whats_on_dubai", now.Add(-30*24*time.Hour))
	stamp(t, severe, types.TierMedium, 3, now.Add(-8*24*time.Hour))

	// Mildly overdue: past delete_after but within the severe window
	mild := makeEvent("Slightly Late", "whats_on_dubai", now.Add(-5*24*time.Hour))
	stamp(t, mild, types.TierMedium, 3, now.Add(-12*time.Hour))

	// Stuck in soft_deleted for more than 3 days
	stuck := makeEvent("Stuck Record", "7g_media", now.Add(-30*24*time.Hour))
	sa := now.Add(-4 * 24 * time.Hour)
	stuck.Status = types.StatusSoftDeleted
	stuck.DeletedAt = &sa

	for _, ev := range []*types.Event{severe, mild, stuck} {
		require.NoError(t, store.InsertEvent(ctx, ev))
	}

	result := sw.RunEmergencyCheck(ctx)
	require.Equal(t, types.ResultCompleted, result.Status, result.Error)

	assert.Equal(t, 1, result.SeverelyOverdueFound)
	assert.Equal(t, 1, result.StuckDeletedFound)
	assert.Equal(t, 1, result.ForceSoftDeleted)
	assert.Equal(t, 1, result.ForceHardDeleted)
	assert.Len(t, result.EmergencyActions, 2)
	assert.False(t, result.NeedsAttention)

	// The severe record was force soft-deleted, the mild one left alone
	got, err := store.GetEvent(ctx, severe.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSoftDeleted, got.Status)

	got, err = store.GetEvent(ctx, mild.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, got.Status)

	// The stuck record is gone
	_, err = store.GetEvent(ctx, stuck.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRunEmergencyCheckNeedsAttention(t *testing.T) {
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)
	sw, store := newTestSweeper(t, now)
	ctx := context.Background()

	// Lower the danger threshold instead of inserting thousands of rows
	sw.cfg.DangerActive = 2

	for i, title := range []string{"One", "Two", "Three"} {
		ev := makeEvent(title, "dubai_calendar", now.Add(time.Duration(i+1)*24*time.Hour))
		stamp(t, ev, types.TierHigh, 7, now.Add(30*24*time.Hour))
		require.NoError(t, store.InsertEvent(ctx, ev))
	}

	result := sw.RunEmergencyCheck(ctx)
	require.Equal(t, types.ResultCompleted, result.Status)
	assert.Equal(t, 3, result.TotalActiveEvents)
	assert.True(t, result.NeedsAttention)
	assert.Empty(t, result.EmergencyActions)
}

func TestRunManualCleanup(t *testing.T) {
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)
	sw, store := newTestSweeper(t, now)
	ctx := context.Background()

	// Overdue and never-stamped events from the target source
	overdue := makeEvent("Overdue Listing", "social_rising", now.Add(-48*time.Hour))
	stamp(t, overdue, types.TierLow, 1, now.Add(-2*time.Hour))
	unstamped := makeEvent("Unstamped Listing", "social_rising", now.Add(-24*time.Hour))

	// Same source but not yet due
	pending := makeEvent("Still Valid", "social_rising", now.Add(24*time.Hour))
	stamp(t, pending, types.TierLow, 1, now.Add(72*time.Hour))

	// Different source entirely
	other := makeEvent("Other Source", "dubai_calendar", now.Add(-48*time.Hour))
	stamp(t, other, types.TierHigh, 7, now.Add(-2*time.Hour))

	for _, ev := range []*types.Event{overdue, unstamped, pending, other} {
		require.NoError(t, store.InsertEvent(ctx, ev))
	}

	result := sw.RunManualCleanup(ctx, "social_rising")
	require.Equal(t, types.ResultCompleted, result.Status, result.Error)
	assert.Equal(t, "social_rising", result.Source)
	assert.Equal(t, types.TierLow, result.Priority)
	assert.Equal(t, 2, result.EventsCleaned)

	got, err := store.GetEvent(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, got.Status)

	got, err = store.GetEvent(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, got.Status)
}

func TestRunManualCleanupEmptySource(t *testing.T) {
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)
	sw, _ := newTestSweeper(t, now)

	result := sw.RunManualCleanup(context.Background(), "")
	assert.Equal(t, types.ResultFailed, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestConfigFromEnvSweeper(t *testing.T) {
	t.Setenv("DXB_SWEEP_GRACE_HOURS", "48")
	t.Setenv("DXB_SWEEP_DANGER_ACTIVE", "5000")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cfg.GracePeriod)
	assert.Equal(t, 5000, cfg.DangerActive)

	t.Setenv("DXB_SWEEP_BATCH_SIZE", "0")
	_, err = ConfigFromEnv()
	assert.Error(t, err)
}
