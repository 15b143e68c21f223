package dedup

import (
	"context"
	"fmt"
	"log"

	"github.com/dxbevents/lifecycle/internal/storage"
	"github.com/dxbevents/lifecycle/internal/types"
)

// bulkGroupPrefixLen is how much of the normalized title keys a merge
// group. Events whose titles diverge in the first 15 characters are
// never compared by the bulk pass.
const bulkGroupPrefixLen = 15

// BulkResult summarizes one bulk cleanup pass
type BulkResult struct {
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
	EventsAnalyzed  int    `json:"events_analyzed"`
	GroupsFound     int    `json:"groups_found"`
	EventsMerged    int    `json:"events_merged"`
	EventsRemoved   int    `json:"events_removed"`
}

// BulkCleanup scans stored active events for duplicates the inline
// check missed and consolidates them. Within each title-prefix group,
// pairs scoring at or above BulkThreshold are merged: the older record
// absorbs the newer one's data and the newer record is removed.
//
// The pass never fails the caller: errors land in the result with
// status "failed".
func (e *Engine) BulkCleanup(ctx context.Context) *BulkResult {
	result := &BulkResult{Status: types.ResultCompleted}

	events, err := e.store.ListEventsByStatus(ctx, types.StatusActive, e.cfg.BulkScanLimit)
	if err != nil {
		result.Status = types.ResultFailed
		result.Error = fmt.Sprintf("failed to load active events: %v", err)
		log.Printf("[DEDUP] Bulk cleanup aborted: %v", err)
		return result
	}
	result.EventsAnalyzed = len(events)

	groups := make(map[string][]*types.Event)
	for _, ev := range events {
		key := storage.Normalize(ev.Title)
		if len(key) > bulkGroupPrefixLen {
			key = key[:bulkGroupPrefixLen]
		}
		groups[key] = append(groups[key], ev)
	}

	removed := make(map[string]struct{})
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		result.GroupsFound++
		e.mergeGroup(ctx, group, removed, result)

		if err := ctx.Err(); err != nil {
			result.Status = types.ResultFailed
			result.Error = err.Error()
			return result
		}
	}

	log.Printf("[DEDUP] Bulk cleanup: analyzed %d, groups %d, merged %d, removed %d",
		result.EventsAnalyzed, result.GroupsFound, result.EventsMerged, result.EventsRemoved)
	return result
}

// mergeGroup compares every pair in one candidate group. When a pair
// matches, the older record (by created_at) survives and the newer one
// is merged in and deleted.
func (e *Engine) mergeGroup(ctx context.Context, group []*types.Event, removed map[string]struct{}, result *BulkResult) {
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			a, b := group[i], group[j]
			if _, gone := removed[a.ID]; gone {
				break
			}
			if _, gone := removed[b.ID]; gone {
				continue
			}

			score := e.scorer.Score(a, b)
			if score < e.cfg.BulkThreshold {
				continue
			}

			keep, drop := a, b
			if b.CreatedAt.Before(a.CreatedAt) {
				keep, drop = b, a
			}

			now := e.now().UTC()
			MergeInto(keep, drop, now)
			if err := e.store.UpdateEvent(ctx, keep); err != nil {
				log.Printf("[DEDUP] Bulk merge failed to update %s: %v", keep.ID, err)
				continue
			}
			if err := e.store.DeleteEvent(ctx, drop.ID); err != nil {
				log.Printf("[DEDUP] Bulk merge failed to remove %s: %v", drop.ID, err)
				continue
			}
			e.logDuplicate(ctx, drop, keep, score, types.ActionMergedDuplicate, now)

			removed[drop.ID] = struct{}{}
			result.EventsMerged++
			result.EventsRemoved++
		}
	}
}
