package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dxbevents/lifecycle/internal/types"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func makeEvent(title, venue, source string, start time.Time) *types.Event {
	now := start.Add(-24 * time.Hour)
	return &types.Event{
		ID:          uuid.NewString(),
		Title:       title,
		Venue:       types.Venue{Name: venue},
		StartDate:   start,
		SourceName:  source,
		SourceID:    uuid.NewString(),
		Status:      types.StatusActive,
		CreatedAt:   now,
		LastUpdated: now,
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase", "Desert Safari", "desert safari"},
		{"punctuation stripped", "Jazz @ The Opera!", "jazz the opera"},
		{"whitespace collapsed", "  big \t bad  wolf ", "big bad wolf"},
		{"unicode kept", "Café Nights", "café nights"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestInsertGetRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	start := time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	lat, lng := 25.197, 55.274
	ev := makeEvent("Opera Gala", "Dubai Opera", "platinumlist", start)
	ev.Description = "An evening of arias"
	ev.Venue.Address = "Sheikh Mohammed bin Rashid Blvd"
	ev.Venue.Area = "Downtown"
	ev.Venue.Latitude = &lat
	ev.Venue.Longitude = &lng
	ev.EndDate = &end
	ev.Pricing = &types.Pricing{BasePrice: 150, MaxPrice: 450, Currency: "AED"}
	ev.Tags = []string{"music", "opera"}
	ev.ImageURLs = []string{"https://example.com/gala.jpg"}
	ev.BookingURL = "https://example.com/book"
	ev.Showtimes = []string{"20:00"}
	ev.SourceTracking = []types.SourceRecord{{SourceName: "platinumlist", SourceID: ev.SourceID, FirstSeen: ev.CreatedAt}}

	require.NoError(t, store.InsertEvent(ctx, ev))

	got, err := store.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.Title, got.Title)
	assert.Equal(t, ev.Description, got.Description)
	assert.Equal(t, ev.Venue.Name, got.Venue.Name)
	require.NotNil(t, got.Venue.Latitude)
	assert.InDelta(t, lat, *got.Venue.Latitude, 1e-9)
	require.NotNil(t, got.EndDate)
	assert.True(t, got.EndDate.Equal(end))
	require.NotNil(t, got.Pricing)
	assert.Equal(t, 150.0, got.Pricing.BasePrice)
	assert.Equal(t, []string{"music", "opera"}, got.Tags)
	assert.Equal(t, []string{"https://example.com/gala.jpg"}, got.ImageURLs)
	assert.Equal(t, []string{"20:00"}, got.Showtimes)
	require.Len(t, got.SourceTracking, 1)
	assert.Equal(t, "platinumlist", got.SourceTracking[0].SourceName)
	assert.Equal(t, types.StatusActive, got.Status)
}

func TestGetEventNotFound(t *testing.T) {
	store := newTestStorage(t)
	_, err := store.GetEvent(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertDuplicateKeyBackstop(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC)

	first := makeEvent("Desert Safari Adventure", "Al Marmoom", "eventbrite_dubai", start)
	require.NoError(t, store.InsertEvent(ctx, first))

	// Same normalized title/venue/start from a different source
	second := makeEvent("Desert Safari Adventure!", "AL MARMOOM", "meetup_dubai", start)
	err := store.InsertEvent(ctx, second)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	// Different start date is a different event
	third := makeEvent("Desert Safari Adventure", "Al Marmoom", "meetup_dubai", start.Add(24*time.Hour))
	assert.NoError(t, store.InsertEvent(ctx, third))
}

func TestUpdateEvent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC)

	ev := makeEvent("Food Festival", "Jumeirah Beach", "dubai_calendar", start)
	require.NoError(t, store.InsertEvent(ctx, ev))

	ev.Tags = []string{"food"}
	ev.MergedFrom = []string{"other-id"}
	ev.LastUpdated = start
	require.NoError(t, store.UpdateEvent(ctx, ev))

	got, err := store.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"food"}, got.Tags)
	assert.Equal(t, []string{"other-id"}, got.MergedFrom)

	missing := makeEvent("Ghost", "Nowhere", "dubai_calendar", start)
	assert.ErrorIs(t, store.UpdateEvent(ctx, missing), ErrNotFound)
}

func TestSearchByTitle(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC)

	a := makeEvent("Jazz Night at the Marina", "Marina Walk", "timeout_dubai", start)
	b := makeEvent("Rooftop Jazz Evening", "Sky Lounge", "platinumlist", start)
	c := makeEvent("Kids Pottery Workshop", "Art Hub", "timeout_kids_uae", start)
	for _, ev := range []*types.Event{a, b, c} {
		require.NoError(t, store.InsertEvent(ctx, ev))
	}

	got, err := store.SearchByTitle(ctx, "Jazz Night at the Marina", []string{"jazz"}, 10)
	require.NoError(t, err)
	ids := eventIDs(got)
	assert.Contains(t, ids, a.ID)
	assert.Contains(t, ids, b.ID) // keyword match
	assert.NotContains(t, ids, c.ID)
}

func TestSearchByTitleSkipsSoftDeleted(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC)

	ev := makeEvent("Jazz Night", "Marina Walk", "timeout_dubai", start)
	deletedAt := start
	ev.Status = types.StatusSoftDeleted
	ev.DeletedAt = &deletedAt
	require.NoError(t, store.InsertEvent(ctx, ev))

	got, err := store.SearchByTitle(ctx, "Jazz Night", []string{"jazz"}, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchByVenueAndTime(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC)

	near := makeEvent("Evening Show", "Dubai Opera", "platinumlist", start.Add(6*time.Hour))
	far := makeEvent("Morning Show", "Dubai Opera", "platinumlist", start.Add(72*time.Hour))
	elsewhere := makeEvent("Evening Show Two", "Coca-Cola Arena", "platinumlist", start)
	for _, ev := range []*types.Event{near, far, elsewhere} {
		require.NoError(t, store.InsertEvent(ctx, ev))
	}

	got, err := store.SearchByVenueAndTime(ctx, "DUBAI OPERA", start, 24*time.Hour, 10)
	require.NoError(t, err)
	ids := eventIDs(got)
	assert.Contains(t, ids, near.ID)
	assert.NotContains(t, ids, far.ID)
	assert.NotContains(t, ids, elsewhere.ID)
}

func TestSearchByVenueAndTimeSubstringOverlap(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	start := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

	stored := makeEvent("Dubai Marina Sunset Yoga", "Dubai Marina Walk", "timeout_dubai", start)
	require.NoError(t, store.InsertEvent(ctx, stored))

	// A longer, comma-suffixed venue still shares the stored venue's
	// prefix and must surface the candidate
	got, err := store.SearchByVenueAndTime(ctx, "Dubai Marina Walk, Marina", start.Add(30*time.Minute), 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Contains(t, eventIDs(got), stored.ID)

	// The prefix also matches against the address when the name differs
	addressed := makeEvent("Marina Art Walk", "Pier 7", "timeout_dubai", start)
	addressed.Venue.Address = "Dubai Marina Walk, Marina District"
	require.NoError(t, store.InsertEvent(ctx, addressed))

	got, err = store.SearchByVenueAndTime(ctx, "Dubai Marina Walk", start, 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Contains(t, eventIDs(got), addressed.ID)
}

func TestSearchByOrigin(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	start := time.Date(2026, 9, 12, 20, 0, 0, 0, time.UTC)

	ev := makeEvent("Tech Meetup", "Internet City", "meetup_dubai", start)
	require.NoError(t, store.InsertEvent(ctx, ev))

	got, err := store.SearchByOrigin(ctx, "meetup_dubai", ev.SourceID, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ev.ID, got[0].ID)

	got, err = store.SearchByOrigin(ctx, "meetup_dubai", "", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSoftDeleteExpiredIsConditionalAndIdempotent(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)

	expired := makeEvent("Old Pop-Up", "DIFC", "7g_media", now.Add(-10*24*time.Hour))
	expired.SourcePriority = types.TierLow
	expired.RetentionDays = 1
	da := now.Add(-48 * time.Hour)
	expired.DeleteAfter = &da

	fresh := makeEvent("New Pop-Up", "DIFC", "7g_media", now.Add(24*time.Hour))
	fresh.SourcePriority = types.TierLow
	fresh.RetentionDays = 1
	fda := now.Add(72 * time.Hour)
	fresh.DeleteAfter = &fda

	require.NoError(t, store.InsertEvent(ctx, expired))
	require.NoError(t, store.InsertEvent(ctx, fresh))

	n, err := store.SoftDeleteExpired(ctx, types.TierLow, now.Add(-24*time.Hour), now, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Second pass finds nothing to transition
	n, err = store.SoftDeleteExpired(ctx, types.TierLow, now.Add(-24*time.Hour), now, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := store.GetEvent(ctx, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSoftDeleted, got.Status)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, got.DeletedAt.Equal(now))

	got, err = store.GetEvent(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, got.Status)
}

func TestSoftDeleteForSource(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)

	unstamped := makeEvent("Unstamped", "Somewhere", "social_rising", now.Add(-time.Hour))
	overdue := makeEvent("Overdue", "Somewhere Else", "social_rising", now.Add(-48*time.Hour))
	da := now.Add(-time.Hour)
	overdue.DeleteAfter = &da
	otherSource := makeEvent("Keeper", "Elsewhere", "dubai_calendar", now.Add(-time.Hour))

	for _, ev := range []*types.Event{unstamped, overdue, otherSource} {
		require.NoError(t, store.InsertEvent(ctx, ev))
	}

	n, err := store.SoftDeleteForSource(ctx, "social_rising", now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.GetEvent(ctx, otherSource.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, got.Status)
}

func TestPurgeSoftDeletedRespectsLimitAndCutoff(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ev := makeEvent("Expired "+string(rune('A'+i)), "Venue "+string(rune('A'+i)), "7g_media", now.Add(-100*time.Hour))
		da := now.Add(time.Duration(-80-i) * time.Hour)
		ev.Status = types.StatusSoftDeleted
		ev.DeletedAt = &da
		require.NoError(t, store.InsertEvent(ctx, ev))
	}
	recent := makeEvent("Recent", "Venue R", "7g_media", now.Add(-100*time.Hour))
	rda := now.Add(-time.Hour)
	recent.Status = types.StatusSoftDeleted
	recent.DeletedAt = &rda
	require.NoError(t, store.InsertEvent(ctx, recent))

	cutoff := now.Add(-30 * time.Hour)
	n, err := store.PurgeSoftDeleted(ctx, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.PurgeSoftDeleted(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Recently deleted record survives the cutoff
	_, err = store.GetEvent(ctx, recent.ID)
	assert.NoError(t, err)
}

func TestListMissingRetention(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)

	missing := makeEvent("Unstamped", "Venue", "whats_on_dubai", now.Add(24*time.Hour))
	stamped := makeEvent("Stamped", "Venue B", "whats_on_dubai", now.Add(24*time.Hour))
	stamped.SourcePriority = types.TierMedium
	stamped.RetentionDays = 3
	end := now.Add(26 * time.Hour)
	da := end.AddDate(0, 0, 3)
	stamped.EndDate = &end
	stamped.DeleteAfter = &da

	require.NoError(t, store.InsertEvent(ctx, missing))
	require.NoError(t, store.InsertEvent(ctx, stamped))

	got, err := store.ListMissingRetention(ctx, 50)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, missing.ID, got[0].ID)

	n, err := store.CountMissingRetention(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.UpdateRetentionFields(ctx, missing.ID, types.TierMedium, 3, &da, now))
	n, err = store.CountMissingRetention(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestActiveTierCountsAndSourceStats(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)

	specs := []struct {
		title  string
		source string
		tier   types.Tier
	}{
		{"A", "dubai_calendar", types.TierHigh},
		{"B", "dubai_calendar", types.TierHigh},
		{"C", "eventbrite_dubai", types.TierMedium},
		{"D", "7g_media", types.TierLow},
	}
	for i, sp := range specs {
		ev := makeEvent(sp.title, "Venue "+sp.title, sp.source, now.Add(time.Duration(i)*time.Hour))
		ev.SourcePriority = sp.tier
		ev.RetentionDays = 1
		require.NoError(t, store.InsertEvent(ctx, ev))
	}

	counts, err := store.ActiveTierCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, counts.Total)
	assert.Equal(t, 2, counts.High)
	assert.Equal(t, 1, counts.Medium)
	assert.Equal(t, 1, counts.Low)

	stats, err := store.GetSourceStats(ctx, now)
	require.NoError(t, err)
	require.Contains(t, stats, "dubai_calendar")
	assert.Equal(t, 2, stats["dubai_calendar"].Active)
	assert.Equal(t, 0, stats["dubai_calendar"].Overdue)
}

func TestDuplicateLogRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	now := time.Date(2026, 9, 12, 3, 0, 0, 0, time.UTC)

	for i, source := range []string{"meetup_dubai", "meetup_dubai", "7g_media"} {
		entry := &types.DuplicateLog{
			NewTitle:        "Dup",
			NewSourceName:   source,
			ExistingID:      "existing",
			ExistingTitle:   "Original",
			SimilarityScore: 0.91,
			Action:          types.ActionRejectedDuplicate,
			DetectedAt:      now.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, store.InsertDuplicateLog(ctx, entry))
	}

	n, err := store.CountDuplicateLogsSince(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = store.CountDuplicateLogsSince(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	top, err := store.TopDuplicateSources(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, top)
	assert.Equal(t, "meetup_dubai", top[0].SourceName)
	assert.Equal(t, 2, top[0].Count)
}

func TestWeeklyStatsUpsert(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	week := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC) // a Monday

	first := &types.WeeklyStats{WeekStart: week, TotalEvents: 100, HighEvents: 60, MediumEvents: 30, LowEvents: 10, RecordedAt: week.Add(time.Hour)}
	require.NoError(t, store.UpsertWeeklyStats(ctx, first))

	// Re-recording the same week replaces the snapshot
	second := &types.WeeklyStats{WeekStart: week, TotalEvents: 120, HighEvents: 70, MediumEvents: 35, LowEvents: 15, RecordedAt: week.Add(2 * time.Hour)}
	require.NoError(t, store.UpsertWeeklyStats(ctx, second))

	prior := &types.WeeklyStats{WeekStart: week.AddDate(0, 0, -7), TotalEvents: 90, HighEvents: 50, MediumEvents: 30, LowEvents: 10, RecordedAt: week.AddDate(0, 0, -7)}
	require.NoError(t, store.UpsertWeeklyStats(ctx, prior))

	got, err := store.GetLatestWeeklyStats(ctx, week.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, 120, got.TotalEvents)
	assert.True(t, got.WeekStart.Equal(week))

	got, err = store.GetLatestWeeklyStats(ctx, week)
	require.NoError(t, err)
	assert.Equal(t, 90, got.TotalEvents)

	_, err = store.GetLatestWeeklyStats(ctx, week.AddDate(0, 0, -7))
	assert.ErrorIs(t, err, ErrNotFound)
}

func eventIDs(events []*types.Event) []string {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	return ids
}
