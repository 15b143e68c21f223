package types

import (
	"fmt"
	"time"
)

// Event represents a stored event record - the unit of storage for the
// deduplication and lifecycle engine.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Venue       Venue      `json:"venue"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Pricing     *Pricing   `json:"pricing,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	ImageURLs   []string   `json:"image_urls,omitempty"`
	BookingURL  string     `json:"booking_url,omitempty"`
	Showtimes   []string   `json:"showtimes,omitempty"`

	// Origin identity: the feed the record came from, and the feed's own
	// id for it when the feed provides one.
	SourceName string `json:"source_name"`
	SourceID   string `json:"source_id,omitempty"`

	// Lifecycle fields. Status is monotonic: active -> soft_deleted ->
	// physically removed. RetentionDays and SourcePriority are derived
	// from the origin by the retention registry, never set ad hoc.
	Status         Status     `json:"status"`
	SourcePriority Tier       `json:"source_priority,omitempty"`
	RetentionDays  int        `json:"retention_days,omitempty"`
	DeleteAfter    *time.Time `json:"delete_after,omitempty"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`

	// SourceTracking accumulates provenance across merges. Append-only;
	// a record is never split.
	SourceTracking []SourceRecord `json:"source_tracking,omitempty"`
	MergedFrom     []string       `json:"merged_from,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// Venue describes where an event takes place
type Venue struct {
	Name      string   `json:"name"`
	Address   string   `json:"address,omitempty"`
	Area      string   `json:"area,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Pricing describes the price range of an event
type Pricing struct {
	BasePrice float64 `json:"base_price"`
	MaxPrice  float64 `json:"max_price"`
	Currency  string  `json:"currency,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

// SourceRecord is a single provenance entry: which feed reported the event
// and when it was first seen there.
type SourceRecord struct {
	SourceName string    `json:"source_name"`
	SourceID   string    `json:"source_id,omitempty"`
	FirstSeen  time.Time `json:"first_seen"`
}

// Validate checks if the event has valid field values
func (e *Event) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("title is required")
	}
	if len(e.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(e.Title))
	}
	if e.SourceName == "" {
		return fmt.Errorf("source_name is required")
	}
	if e.StartDate.IsZero() {
		return fmt.Errorf("start_date is required")
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", e.Status)
	}
	if e.SourcePriority != "" && !e.SourcePriority.IsValid() {
		return fmt.Errorf("invalid source_priority: %s", e.SourcePriority)
	}
	if e.RetentionDays < 0 {
		return fmt.Errorf("retention_days cannot be negative (got %d)", e.RetentionDays)
	}
	if e.DeleteAfter != nil && e.EndDate != nil && e.DeleteAfter.Before(*e.EndDate) {
		return fmt.Errorf("delete_after (%s) cannot be earlier than end_date (%s)",
			e.DeleteAfter.Format(time.RFC3339), e.EndDate.Format(time.RFC3339))
	}
	return nil
}

// Status represents the lifecycle state of a stored event.
// Hard-deleted records are physically absent, so there is no value for them.
type Status string

const (
	StatusActive      Status = "active"
	StatusSoftDeleted Status = "soft_deleted"
)

// IsValid checks if the status value is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSoftDeleted:
		return true
	}
	return false
}

// Tier classifies a record's origin and drives its retention window
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// IsValid checks if the tier value is valid
func (t Tier) IsValid() bool {
	switch t {
	case TierHigh, TierMedium, TierLow:
		return true
	}
	return false
}

// AllTiers lists every tier in descending priority order.
// Sweeps iterate this so each tier runs as an independent batch.
func AllTiers() []Tier {
	return []Tier{TierHigh, TierMedium, TierLow}
}

// DuplicateLog is an immutable audit record written whenever an incoming
// record is rejected as a duplicate. It is used for statistics only and
// never read back for control flow.
type DuplicateLog struct {
	ID              int64     `json:"id,omitempty"`
	NewTitle        string    `json:"new_title"`
	NewSourceName   string    `json:"new_source_name"`
	NewSourceID     string    `json:"new_source_id,omitempty"`
	ExistingID      string    `json:"existing_id"`
	ExistingTitle   string    `json:"existing_title"`
	SimilarityScore float64   `json:"similarity_score"`
	Action          string    `json:"action"`
	DetectedAt      time.Time `json:"detected_at"`
}

// Validate checks if the duplicate log entry has valid values
func (d *DuplicateLog) Validate() error {
	if d.ExistingID == "" {
		return fmt.Errorf("existing_id is required")
	}
	if d.SimilarityScore < 0.0 || d.SimilarityScore > 1.0 {
		return fmt.Errorf("similarity_score must be between 0.0 and 1.0 (got %.2f)", d.SimilarityScore)
	}
	if d.Action == "" {
		return fmt.Errorf("action is required")
	}
	return nil
}

// Audit actions recorded in the duplicate log
const (
	// ActionRejectedDuplicate marks an incoming record merged into an
	// existing one at ingestion time instead of being stored
	ActionRejectedDuplicate = "rejected_duplicate"

	// ActionMergedDuplicate marks two stored records consolidated by
	// the bulk cleanup pass
	ActionMergedDuplicate = "merged_duplicate"
)

// WeeklyStats is a point-in-time aggregate of per-tier counts, keyed by
// week start (Monday 00:00) and upserted for trend comparison.
type WeeklyStats struct {
	WeekStart    time.Time `json:"week_start"`
	TotalEvents  int       `json:"total_events"`
	HighEvents   int       `json:"high_priority_events"`
	MediumEvents int       `json:"medium_priority_events"`
	LowEvents    int       `json:"low_priority_events"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// WeekStart truncates t to the Monday 00:00 of its week.
func WeekStart(t time.Time) time.Time {
	daysSinceMonday := (int(t.Weekday()) + 6) % 7
	day := t.AddDate(0, 0, -daysSinceMonday)
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, t.Location())
}
