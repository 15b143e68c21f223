package dedup

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the deduplication engine
type Config struct {
	// SimilarityThreshold is the minimum weighted score (0.0-1.0) for an
	// incoming event to be rejected as a duplicate at ingestion time
	// Higher values = more conservative (fewer false positives, more false negatives)
	// Lower values = more aggressive (more false positives, fewer false negatives)
	// Default: 0.75
	SimilarityThreshold float64

	// BulkThreshold is the stricter score required before the bulk
	// cleanup pass merges two already-stored events. Bulk cleanup is
	// destructive, so it demands more evidence than the inline check.
	// Default: 0.85
	BulkThreshold float64

	// TitleCandidates caps results from the title search strategy
	// Default: 10
	TitleCandidates int

	// VenueCandidates caps results from the venue+time search strategy
	// Default: 10
	VenueCandidates int

	// OriginCandidates caps results from the source-identity strategy
	// Default: 5
	OriginCandidates int

	// VenueTimeWindow is how far either side of the incoming start time
	// the venue strategy searches
	// Default: 24 hours
	VenueTimeWindow time.Duration

	// MaxKeywords caps how many title keywords feed the title search
	// Default: 10
	MaxKeywords int

	// BulkScanLimit caps how many active events one bulk cleanup pass loads
	// Default: 5000
	BulkScanLimit int

	// FailOpen determines behavior when the duplicate check itself fails
	// If true: accept the event anyway (prefer a duplicate over lost data)
	// If false: return the error and block ingestion
	// Default: true
	FailOpen bool
}

// DefaultConfig returns the default deduplication configuration
//
// These defaults are chosen to:
// - Catch retitled cross-source duplicates (moderate inline threshold)
// - Demand stronger evidence for destructive bulk merges
// - Keep candidate searches cheap (small per-strategy caps)
// - Fail safely (store duplicates rather than lose events)
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.75,
		BulkThreshold:       0.85,
		TitleCandidates:     10,
		VenueCandidates:     10,
		OriginCandidates:    5,
		VenueTimeWindow:     24 * time.Hour,
		MaxKeywords:         10,
		BulkScanLimit:       5000,
		FailOpen:            true,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.SimilarityThreshold < 0.0 || c.SimilarityThreshold > 1.0 {
		return fmt.Errorf("similarity_threshold must be between 0.0 and 1.0 (got %.2f)",
			c.SimilarityThreshold)
	}
	if c.BulkThreshold < 0.0 || c.BulkThreshold > 1.0 {
		return fmt.Errorf("bulk_threshold must be between 0.0 and 1.0 (got %.2f)",
			c.BulkThreshold)
	}
	if c.BulkThreshold < c.SimilarityThreshold {
		return fmt.Errorf("bulk_threshold (%.2f) must not be below similarity_threshold (%.2f)",
			c.BulkThreshold, c.SimilarityThreshold)
	}
	if c.TitleCandidates <= 0 {
		return fmt.Errorf("title_candidates must be positive (got %d)", c.TitleCandidates)
	}
	if c.VenueCandidates <= 0 {
		return fmt.Errorf("venue_candidates must be positive (got %d)", c.VenueCandidates)
	}
	if c.OriginCandidates <= 0 {
		return fmt.Errorf("origin_candidates must be positive (got %d)", c.OriginCandidates)
	}
	if c.TitleCandidates > 100 || c.VenueCandidates > 100 || c.OriginCandidates > 100 {
		return fmt.Errorf("per-strategy candidate caps too large (max 100)")
	}
	if c.VenueTimeWindow <= 0 {
		return fmt.Errorf("venue_time_window must be positive (got %v)", c.VenueTimeWindow)
	}
	if c.VenueTimeWindow > 7*24*time.Hour {
		return fmt.Errorf("venue_time_window too large (got %v, max 7 days)", c.VenueTimeWindow)
	}
	if c.MaxKeywords <= 0 {
		return fmt.Errorf("max_keywords must be positive (got %d)", c.MaxKeywords)
	}
	if c.BulkScanLimit <= 0 {
		return fmt.Errorf("bulk_scan_limit must be positive (got %d)", c.BulkScanLimit)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Threshold: %.2f, BulkThreshold: %.2f, Candidates: %d/%d/%d, "+
			"VenueWindow: %v, MaxKeywords: %d, BulkScanLimit: %d, FailOpen: %t}",
		c.SimilarityThreshold, c.BulkThreshold,
		c.TitleCandidates, c.VenueCandidates, c.OriginCandidates,
		c.VenueTimeWindow, c.MaxKeywords, c.BulkScanLimit, c.FailOpen,
	)
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// Environment variables:
//   - DXB_DEDUP_THRESHOLD: Minimum score (0.0-1.0) to reject as duplicate (default: 0.75)
//   - DXB_DEDUP_BULK_THRESHOLD: Minimum score for bulk cleanup merges (default: 0.85)
//   - DXB_DEDUP_TITLE_CANDIDATES: Title strategy result cap (default: 10)
//   - DXB_DEDUP_VENUE_CANDIDATES: Venue+time strategy result cap (default: 10)
//   - DXB_DEDUP_ORIGIN_CANDIDATES: Source-identity strategy result cap (default: 5)
//   - DXB_DEDUP_VENUE_WINDOW_HOURS: Venue strategy time window in hours (default: 24)
//   - DXB_DEDUP_MAX_KEYWORDS: Title keyword cap (default: 10)
//   - DXB_DEDUP_BULK_SCAN_LIMIT: Events loaded per bulk pass (default: 5000)
//   - DXB_DEDUP_FAIL_OPEN: Accept event when the check fails (default: true)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvFloat("DXB_DEDUP_THRESHOLD", &cfg.SimilarityThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("DXB_DEDUP_BULK_THRESHOLD", &cfg.BulkThreshold); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DXB_DEDUP_TITLE_CANDIDATES", &cfg.TitleCandidates); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DXB_DEDUP_VENUE_CANDIDATES", &cfg.VenueCandidates); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DXB_DEDUP_ORIGIN_CANDIDATES", &cfg.OriginCandidates); err != nil {
		return cfg, err
	}
	if err := parseEnvDuration("DXB_DEDUP_VENUE_WINDOW_HOURS", &cfg.VenueTimeWindow, time.Hour); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DXB_DEDUP_MAX_KEYWORDS", &cfg.MaxKeywords); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DXB_DEDUP_BULK_SCAN_LIMIT", &cfg.BulkScanLimit); err != nil {
		return cfg, err
	}
	if err := parseEnvBool("DXB_DEDUP_FAIL_OPEN", &cfg.FailOpen); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
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

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
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
