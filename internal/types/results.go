package types

import "time"

// Result statuses reported by the engine entrypoints. Entrypoints never
// raise past their own boundary; failures surface as a failed-status
// result with the error string attached.
const (
	ResultCompleted = "completed"
	ResultFailed    = "failed"
)

// SweepResult reports the outcome of a daily lifecycle sweep
type SweepResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`

	// CleanupResults maps tier -> records transitioned to soft_deleted
	CleanupResults map[Tier]int `json:"cleanup_results"`

	// TierErrors records tiers whose expiry sweep failed partway. Tiers
	// run independently, so a failed tier never blocks its siblings or
	// the purge phase; its partial count still lands in CleanupResults
	TierErrors map[Tier]string `json:"tier_errors,omitempty"`

	// PoliciesStamped is the number of records that were missing retention
	// fields and got them backfilled before the sweep ran
	PoliciesStamped int `json:"policies_stamped"`

	// HardDeleted is the number of soft-deleted records physically removed
	// after their grace period expired
	HardDeleted int `json:"hard_deleted"`

	RetentionStats map[string]SourceRetentionStats `json:"retention_stats,omitempty"`
	Timestamp      time.Time                       `json:"timestamp"`
}

// SourceRetentionStats summarizes retention state for a single source
type SourceRetentionStats struct {
	ActiveEvents  int  `json:"active_events"`
	ExpiredEvents int  `json:"expired_events"`
	RetentionDays int  `json:"retention_days"`
	Priority      Tier `json:"priority"`
}

// EmergencyResult reports the outcome of the emergency remediation pass
type EmergencyResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`

	SeverelyOverdueFound int      `json:"severely_overdue_found"`
	StuckDeletedFound    int      `json:"stuck_deleted_found"`
	ForceSoftDeleted     int      `json:"force_soft_deleted"`
	ForceHardDeleted     int      `json:"force_hard_deleted"`
	EmergencyActions     []string `json:"emergency_actions,omitempty"`
	TotalActiveEvents    int      `json:"total_active_events"`

	// NeedsAttention flags danger-threshold breaches for the external
	// monitor: too many severely overdue, too many stuck, or too many
	// active records overall
	NeedsAttention bool `json:"needs_attention"`

	Timestamp time.Time `json:"timestamp"`
}

// ManualCleanupResult reports the outcome of a manual per-source cleanup
type ManualCleanupResult struct {
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	Source        string    `json:"source"`
	Priority      Tier      `json:"priority"`
	EventsCleaned int       `json:"events_cleaned"`
	Timestamp     time.Time `json:"timestamp"`
}
