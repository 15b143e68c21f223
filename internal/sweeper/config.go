package sweeper

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the lifecycle sweeper
type Config struct {
	// GracePeriod is how long a record stays soft-deleted before the
	// sweep physically removes it. The grace window is the recovery
	// margin for a bad retention policy or a misbehaving source.
	// Default: 24 hours
	GracePeriod time.Duration

	// BatchSize bounds each storage write during sweeps so a large
	// backlog cannot hold a write lock for the whole pass
	// Default: 500
	BatchSize int

	// PurgeRatePerSec caps hard deletions per second. Purging is the
	// only unrecoverable operation the sweeper performs, so its
	// throughput is deliberately throttled.
	// Default: 200
	PurgeRatePerSec int

	// BackfillLimit bounds how many unstamped records one sweep will
	// backfill with retention policies before cleaning up
	// Default: 1000
	BackfillLimit int

	// SevereOverdueAge is how far past delete_after an active record
	// must be before the emergency pass force soft-deletes it
	// Default: 7 days
	SevereOverdueAge time.Duration

	// StuckDeletedAge is how long a record may sit soft-deleted before
	// the emergency pass force-purges it
	// Default: 3 days
	StuckDeletedAge time.Duration

	// Danger thresholds. Breaching any of them sets needs_attention on
	// the emergency result so an external monitor can page.
	// Defaults: 50 overdue, 100 stuck, 10000 active
	DangerOverdue int
	DangerStuck   int
	DangerActive  int
}

// DefaultConfig returns the default sweeper configuration
func DefaultConfig() Config {
	return Config{
		GracePeriod:      24 * time.Hour,
		BatchSize:        500,
		PurgeRatePerSec:  200,
		BackfillLimit:    1000,
		SevereOverdueAge: 7 * 24 * time.Hour,
		StuckDeletedAge:  3 * 24 * time.Hour,
		DangerOverdue:    50,
		DangerStuck:      100,
		DangerActive:     10000,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.GracePeriod <= 0 {
		return fmt.Errorf("grace_period must be positive (got %v)", c.GracePeriod)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive (got %d)", c.BatchSize)
	}
	if c.BatchSize > 10000 {
		return fmt.Errorf("batch_size too large (got %d, max 10000)", c.BatchSize)
	}
	if c.PurgeRatePerSec <= 0 {
		return fmt.Errorf("purge_rate_per_sec must be positive (got %d)", c.PurgeRatePerSec)
	}
	if c.BackfillLimit <= 0 {
		return fmt.Errorf("backfill_limit must be positive (got %d)", c.BackfillLimit)
	}
	if c.SevereOverdueAge <= 0 {
		return fmt.Errorf("severe_overdue_age must be positive (got %v)", c.SevereOverdueAge)
	}
	if c.StuckDeletedAge <= 0 {
		return fmt.Errorf("stuck_deleted_age must be positive (got %v)", c.StuckDeletedAge)
	}
	if c.DangerOverdue <= 0 || c.DangerStuck <= 0 || c.DangerActive <= 0 {
		return fmt.Errorf("danger thresholds must be positive (got %d/%d/%d)",
			c.DangerOverdue, c.DangerStuck, c.DangerActive)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Grace: %v, Batch: %d, PurgeRate: %d/s, Backfill: %d, "+
			"SevereOverdue: %v, StuckDeleted: %v, Danger: %d/%d/%d}",
		c.GracePeriod, c.BatchSize, c.PurgeRatePerSec, c.BackfillLimit,
		c.SevereOverdueAge, c.StuckDeletedAge,
		c.DangerOverdue, c.DangerStuck, c.DangerActive,
	)
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// Environment variables:
//   - DXB_SWEEP_GRACE_HOURS: Soft-delete grace period in hours (default: 24)
//   - DXB_SWEEP_BATCH_SIZE: Records per storage write (default: 500)
//   - DXB_SWEEP_PURGE_RATE: Hard deletions per second (default: 200)
//   - DXB_SWEEP_BACKFILL_LIMIT: Unstamped records backfilled per sweep (default: 1000)
//   - DXB_SWEEP_SEVERE_OVERDUE_DAYS: Emergency force soft-delete age in days (default: 7)
//   - DXB_SWEEP_STUCK_DELETED_DAYS: Emergency force purge age in days (default: 3)
//   - DXB_SWEEP_DANGER_OVERDUE: needs_attention overdue threshold (default: 50)
//   - DXB_SWEEP_DANGER_STUCK: needs_attention stuck threshold (default: 100)
//   - DXB_SWEEP_DANGER_ACTIVE: needs_attention active-total threshold (default: 10000)
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvDuration("DXB_SWEEP_GRACE_HOURS", &cfg.GracePeriod, time.Hour); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DXB_SWEEP_BATCH_SIZE", &cfg.BatchSize); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DXB_SWEEP_PURGE_RATE", &cfg.PurgeRatePerSec); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DXB_SWEEP_BACKFILL_LIMIT", &cfg.BackfillLimit); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("DXB_SWEEP_SEVERE_OVERDUE_DAYS", &cfg.SevereOverdueAge, 24*time.Hour); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("DXB_SWEEP_STUCK_DELETED_DAYS", &cfg.StuckDeletedAge, 24*time.Hour); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DXB_SWEEP_DANGER_OVERDUE", &cfg.DangerOverdue); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DXB_SWEEP_DANGER_STUCK", &cfg.DangerStuck); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DXB_SWEEP_DANGER_ACTIVE", &cfg.DangerActive); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvDuration parses a duration given in units from an environment variable
func parseEnvDuration(key string, dest *time.Duration, unit time.Duration) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = time.Duration(parsed) * unit
	return nil
}
