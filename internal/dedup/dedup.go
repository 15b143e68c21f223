// Package dedup detects and merges duplicate events at ingestion time
// and in bulk over the stored collection.
//
// The engine compares an incoming event against a bounded candidate set
// gathered by three search strategies (title, venue+time, source
// identity) and computes a weighted similarity score. At or above the
// configured threshold the incoming event is rejected and its useful
// data is merged into the existing record, with the decision recorded
// in an append-only audit log.
//
// Example usage:
//
//	engine, err := dedup.NewEngine(store, dedup.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	decision, err := engine.CheckEvent(ctx, candidate)
//	if err != nil {
//	    return err
//	}
//	if decision.IsDuplicate {
//	    log.Printf("duplicate of %s (%.2f)", decision.DuplicateOf, decision.Similarity)
//	}
package dedup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/dxbevents/lifecycle/internal/storage"
	"github.com/dxbevents/lifecycle/internal/types"
)

// Decision represents the result of checking one event for duplicates
type Decision struct {
	// IsDuplicate is true if a stored event matched at or above threshold
	IsDuplicate bool `json:"is_duplicate"`

	// DuplicateOf is the ID of the existing event. Only set when
	// IsDuplicate is true.
	DuplicateOf string `json:"duplicate_of,omitempty"`

	// Similarity is the weighted score of the best match (0.0 to 1.0)
	Similarity float64 `json:"similarity"`

	// ComparedCount is the number of stored events compared against
	ComparedCount int `json:"compared_count"`

	// FailedOpen is true when the check itself failed and the engine
	// let the event through rather than lose it. FailureReason carries
	// the underlying error text for the audit trail.
	FailedOpen    bool   `json:"failed_open,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

// Validate checks if the decision has valid values
func (d *Decision) Validate() error {
	if d.Similarity < 0.0 || d.Similarity > 1.0 {
		return fmt.Errorf("similarity must be between 0.0 and 1.0 (got %.2f)", d.Similarity)
	}
	if d.IsDuplicate && d.DuplicateOf == "" {
		return fmt.Errorf("duplicate_of must be set when is_duplicate is true")
	}
	if !d.IsDuplicate && d.DuplicateOf != "" {
		return fmt.Errorf("duplicate_of should not be set when is_duplicate is false")
	}
	if d.ComparedCount < 0 {
		return fmt.Errorf("compared_count cannot be negative (got %d)", d.ComparedCount)
	}
	if d.FailedOpen && d.FailureReason == "" {
		return fmt.Errorf("failure_reason must be set when failed_open is true")
	}
	return nil
}

// Engine checks incoming events against stored events
type Engine struct {
	store  storage.Storage
	scorer *Scorer
	cfg    Config
	now    func() time.Time
}

// NewEngine creates a deduplication engine backed by the given storage
func NewEngine(store storage.Storage, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{
		store:  store,
		scorer: NewScorer(cfg.MaxKeywords),
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// Config returns the engine's configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// CheckEvent checks whether the candidate duplicates a stored event.
//
// On a match at or above the similarity threshold, the candidate's
// useful data is merged into the existing record and the decision is
// written to the duplicate audit log. Failures while merging or logging
// do not overturn the decision.
//
// When the candidate search itself fails and FailOpen is set, the
// returned decision carries FailedOpen and the candidate should be
// stored; with FailOpen disabled the error is returned instead.
func (e *Engine) CheckEvent(ctx context.Context, candidate *types.Event) (*Decision, error) {
	if candidate == nil {
		return nil, fmt.Errorf("candidate cannot be nil")
	}

	candidates, err := e.findCandidates(ctx, candidate)
	if err != nil {
		if !e.cfg.FailOpen {
			return nil, fmt.Errorf("candidate search failed: %w", err)
		}
		log.Printf("[DEDUP] Candidate search failed, accepting event %q: %v", candidate.Title, err)
		return &Decision{FailedOpen: true, FailureReason: err.Error()}, nil
	}

	decision := &Decision{ComparedCount: len(candidates)}
	var best *types.Event
	for _, existing := range candidates {
		if existing.ID == candidate.ID {
			continue
		}
		score := e.scorer.Score(candidate, existing)
		if score > decision.Similarity {
			decision.Similarity = score
			best = existing
		}
	}

	if best == nil || decision.Similarity < e.cfg.SimilarityThreshold {
		return decision, nil
	}

	decision.IsDuplicate = true
	decision.DuplicateOf = best.ID
	log.Printf("[DEDUP] %q duplicates %q (score %.2f, compared %d)",
		candidate.Title, best.Title, decision.Similarity, decision.ComparedCount)

	now := e.now().UTC()
	if MergeInto(best, candidate, now) {
		if err := e.store.UpdateEvent(ctx, best); err != nil {
			log.Printf("[DEDUP] Failed to merge data into event %s: %v", best.ID, err)
		}
	}
	e.logDuplicate(ctx, candidate, best, decision.Similarity, types.ActionRejectedDuplicate, now)

	return decision, nil
}

// findCandidates gathers potential duplicates from all three search
// strategies and deduplicates by id. A single failing strategy is
// logged and skipped; only all three failing aborts the check.
func (e *Engine) findCandidates(ctx context.Context, candidate *types.Event) ([]*types.Event, error) {
	var all []*types.Event
	var errs []error

	byTitle, err := e.store.SearchByTitle(ctx, candidate.Title,
		e.scorer.Keywords(candidate.Title), e.cfg.TitleCandidates)
	if err != nil {
		log.Printf("[DEDUP] Title search failed: %v", err)
		errs = append(errs, fmt.Errorf("title search: %w", err))
	}
	all = append(all, byTitle...)

	if candidate.Venue.Name != "" {
		byVenue, err := e.store.SearchByVenueAndTime(ctx, candidate.Venue.Name,
			candidate.StartDate, e.cfg.VenueTimeWindow, e.cfg.VenueCandidates)
		if err != nil {
			log.Printf("[DEDUP] Venue search failed: %v", err)
			errs = append(errs, fmt.Errorf("venue search: %w", err))
		}
		all = append(all, byVenue...)
	}

	byOrigin, err := e.store.SearchByOrigin(ctx, candidate.SourceName,
		candidate.SourceID, e.cfg.OriginCandidates)
	if err != nil {
		log.Printf("[DEDUP] Origin search failed: %v", err)
		errs = append(errs, fmt.Errorf("origin search: %w", err))
	}
	all = append(all, byOrigin...)

	if len(all) == 0 && len(errs) > 0 {
		return nil, fmt.Errorf("all candidate strategies failed: %v", errs)
	}

	seen := make(map[string]struct{}, len(all))
	unique := all[:0]
	for _, ev := range all {
		if _, ok := seen[ev.ID]; ok {
			continue
		}
		seen[ev.ID] = struct{}{}
		unique = append(unique, ev)
	}
	return unique, nil
}

func (e *Engine) logDuplicate(ctx context.Context, candidate, existing *types.Event, score float64, action string, now time.Time) {
	entry := &types.DuplicateLog{
		NewTitle:        candidate.Title,
		NewSourceName:   candidate.SourceName,
		NewSourceID:     candidate.SourceID,
		ExistingID:      existing.ID,
		ExistingTitle:   existing.Title,
		SimilarityScore: score,
		Action:          action,
		DetectedAt:      now,
	}
	if err := e.store.InsertDuplicateLog(ctx, entry); err != nil {
		log.Printf("[DEDUP] Failed to record duplicate log: %v", err)
	}
}
