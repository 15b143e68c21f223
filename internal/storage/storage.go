package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dxbevents/lifecycle/internal/storage/sqlite"
	"github.com/dxbevents/lifecycle/internal/types"
)

// ErrDuplicateKey is returned by InsertEvent when the normalized
// (title, venue, start date) uniqueness backstop rejects the record.
// Callers treat it as a duplicate caught by constraint rather than by
// the similarity scorer.
var ErrDuplicateKey = sqlite.ErrDuplicateKey

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = sqlite.ErrNotFound

// TierCounts holds per-tier active record counts for monitoring
type TierCounts = sqlite.TierCounts

// SourceStats holds per-source aggregates for retention reporting
type SourceStats = sqlite.SourceStats

// SourceCount pairs a source name with a count, used for top-N rankings
type SourceCount = sqlite.SourceCount

// Storage defines the persistence surface of the deduplication and
// lifecycle engine: the events collection, the duplicate audit log, and
// the weekly statistics snapshots.
type Storage interface {
	// Events
	InsertEvent(ctx context.Context, ev *types.Event) error
	GetEvent(ctx context.Context, id string) (*types.Event, error)
	UpdateEvent(ctx context.Context, ev *types.Event) error
	DeleteEvent(ctx context.Context, id string) error
	ListEventsByStatus(ctx context.Context, status types.Status, limit int) ([]*types.Event, error)

	// Candidate search - each strategy is bounded and read-only
	SearchByTitle(ctx context.Context, title string, keywords []string, limit int) ([]*types.Event, error)
	SearchByVenueAndTime(ctx context.Context, venueName string, start time.Time, window time.Duration, limit int) ([]*types.Event, error)
	SearchByOrigin(ctx context.Context, sourceName, sourceID string, limit int) ([]*types.Event, error)

	// Retention stamping and backfill
	ListMissingRetention(ctx context.Context, limit int) ([]*types.Event, error)
	UpdateRetentionFields(ctx context.Context, id string, tier types.Tier, retentionDays int, deleteAfter *time.Time, now time.Time) error

	// Lifecycle transitions. All writes are conditional on the record's
	// current status so overlapping sweeps cannot double-transition.
	SoftDeleteExpired(ctx context.Context, tier types.Tier, cutoff, now time.Time, limit int) (int, error)
	SoftDeleteOverdue(ctx context.Context, cutoff, now time.Time) (int, error)
	SoftDeleteForSource(ctx context.Context, sourceName string, now time.Time) (int, error)
	PurgeSoftDeleted(ctx context.Context, cutoff time.Time, limit int) (int, error)

	// Aggregates for health monitoring
	ActiveTierCounts(ctx context.Context) (*TierCounts, error)
	CountActiveOverdue(ctx context.Context, asOf time.Time) (int, error)
	CountSeverelyOverdue(ctx context.Context, cutoff time.Time) (int, error)
	CountStuckSoftDeleted(ctx context.Context, cutoff time.Time) (int, error)
	CountRecentlyDeleted(ctx context.Context, since time.Time) (int, error)
	CountMissingRetention(ctx context.Context) (int, error)
	GetSourceStats(ctx context.Context, asOf time.Time) (map[string]*SourceStats, error)

	// Duplicate audit log - append-only, read back for statistics only
	InsertDuplicateLog(ctx context.Context, entry *types.DuplicateLog) error
	CountDuplicateLogsSince(ctx context.Context, since time.Time) (int, error)
	TopDuplicateSources(ctx context.Context, limit int) ([]SourceCount, error)

	// Weekly statistics snapshots, upserted by week start
	UpsertWeeklyStats(ctx context.Context, stats *types.WeeklyStats) error
	GetLatestWeeklyStats(ctx context.Context, before time.Time) (*types.WeeklyStats, error)

	// Lifecycle
	Close() error
}

var _ Storage = (*sqlite.SQLiteStorage)(nil)

// Normalize is the canonical text normalization shared by the scorer
// and the uniqueness backstop: lowercase, punctuation stripped,
// whitespace collapsed. Both must agree on what "the same title" means.
func Normalize(text string) string {
	return sqlite.Normalize(text)
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path.
	// Special value ":memory:" creates an in-memory database (useful for tests).
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".dxb/events.db",
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".dxb/events.db"
	}
	return sqlite.New(cfg.Path)
}

// IsDuplicateKey reports whether err is the uniqueness-backstop rejection
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// IsNotFound reports whether err indicates a missing record
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
