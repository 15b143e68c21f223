package dedup

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dxbevents/lifecycle/internal/types"
)

// MergeInto folds useful data from incoming into existing and reports
// whether anything changed. The existing record keeps its identity,
// status, and retention stamps; only descriptive data is enriched:
//
//   - image URLs and tags become the union of both
//   - a missing booking URL is filled from incoming
//   - pricing becomes the combined range, with generated tier notes
//   - a start time at a new hour is accumulated into showtimes
//   - a longer title or description wins, with a guard against
//     tier-specific titles ("VIP ...") hijacking the listing
//   - incoming's identity is appended to merged_from and source_tracking
func MergeInto(existing, incoming *types.Event, now time.Time) bool {
	changed := false

	if added := unionInto(&existing.ImageURLs, incoming.ImageURLs); added {
		changed = true
	}
	if added := unionInto(&existing.Tags, incoming.Tags); added {
		changed = true
	}

	if existing.BookingURL == "" && incoming.BookingURL != "" {
		existing.BookingURL = incoming.BookingURL
		changed = true
	}

	if len(incoming.Title) > len(existing.Title) && !strings.Contains(incoming.Title, "VIP") {
		existing.Title = incoming.Title
		changed = true
	}

	if len(incoming.Description) > len(existing.Description) && incoming.Description != existing.Description {
		existing.Description = incoming.Description
		changed = true
	}

	if mergePricing(existing, incoming) {
		changed = true
	}
	if mergeShowtimes(existing, incoming) {
		changed = true
	}

	if incoming.ID != "" && !contains(existing.MergedFrom, incoming.ID) {
		existing.MergedFrom = append(existing.MergedFrom, incoming.ID)
		changed = true
	}

	if !tracksSource(existing.SourceTracking, incoming.SourceName, incoming.SourceID) {
		existing.SourceTracking = append(existing.SourceTracking, types.SourceRecord{
			SourceName: incoming.SourceName,
			SourceID:   incoming.SourceID,
			FirstSeen:  now,
		})
		changed = true
	}

	if changed {
		existing.LastUpdated = now
	}
	return changed
}

// mergePricing widens the existing price range to cover both records
// and regenerates the tier notes for the combined range
func mergePricing(existing, incoming *types.Event) bool {
	if incoming.Pricing == nil {
		return false
	}
	if existing.Pricing == nil {
		p := *incoming.Pricing
		existing.Pricing = &p
		return true
	}

	base := existing.Pricing.BasePrice
	if incoming.Pricing.BasePrice < base {
		base = incoming.Pricing.BasePrice
	}
	max := existing.Pricing.MaxPrice
	for _, v := range []float64{incoming.Pricing.MaxPrice, incoming.Pricing.BasePrice, existing.Pricing.BasePrice} {
		if v > max {
			max = v
		}
	}

	if base == existing.Pricing.BasePrice && max == existing.Pricing.MaxPrice {
		return false
	}
	existing.Pricing.BasePrice = base
	existing.Pricing.MaxPrice = max
	if existing.Pricing.Currency == "" {
		existing.Pricing.Currency = incoming.Pricing.Currency
	}
	existing.Pricing.Notes = pricingTierNotes(base, max, existing.Pricing.Currency)
	return true
}

// pricingTierNotes describes the price range as tiers. A range within
// 20% of the floor is treated as a single tier.
func pricingTierNotes(min, max float64, currency string) string {
	if currency == "" {
		currency = "AED"
	}
	if max <= min*1.2 {
		return fmt.Sprintf("Single tier pricing (%s %d)", currency, int(min))
	}
	spread := max - min
	tier1Max := min + spread*0.4
	tier2Max := min + spread*0.7
	return fmt.Sprintf(
		"Multiple pricing tiers available - Standard (%s %d-%d), Premium (%s %d-%d), VIP (%s %d-%d)",
		currency, int(min), int(tier1Max),
		currency, int(tier1Max+1), int(tier2Max),
		currency, int(tier2Max+1), int(max),
	)
}

// mergeShowtimes accumulates incoming's start time into the showtime
// list when it lands at a different time of day
func mergeShowtimes(existing, incoming *types.Event) bool {
	if existing.StartDate.IsZero() || incoming.StartDate.IsZero() {
		return false
	}
	showtimes := existing.Showtimes
	if len(showtimes) == 0 {
		showtimes = []string{existing.StartDate.Format("15:04")}
	}
	newShowtime := incoming.StartDate.Format("15:04")
	if contains(showtimes, newShowtime) {
		return false
	}
	showtimes = append(showtimes, newShowtime)
	sort.Strings(showtimes)
	existing.Showtimes = showtimes
	return true
}

// unionInto appends values not already present, preserving order
func unionInto(dest *[]string, values []string) bool {
	added := false
	for _, v := range values {
		if v == "" || contains(*dest, v) {
			continue
		}
		*dest = append(*dest, v)
		added = true
	}
	return added
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func tracksSource(tracking []types.SourceRecord, sourceName, sourceID string) bool {
	for _, rec := range tracking {
		if rec.SourceName == sourceName && rec.SourceID == sourceID {
			return true
		}
	}
	return false
}
