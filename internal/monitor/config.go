package monitor

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the alerting and cost-model thresholds for storage
// health monitoring
type Config struct {
	// MaxActiveEvents is the active-event count above which the health
	// check raises a storage alert
	// Default: 5000
	MaxActiveEvents int

	// MinHighTierRatio is the minimum share of active events that
	// should come from high-tier sources. Below it the collection is
	// drowning in low-value listings.
	// Default: 0.4
	MinHighTierRatio float64

	// MaxOverdue is the overdue-for-deletion count above which the
	// health check flags the cleanup pipeline
	// Default: 50
	MaxOverdue int

	// MaxEfficientOverdue is the overdue count at which cleanup
	// efficiency stops being rated good
	// Default: 10
	MaxEfficientOverdue int

	// AvgDocSizeKB is the assumed stored size per event for the cost
	// model
	// Default: 5
	AvgDocSizeKB float64

	// CostPerGBMonth is the assumed storage price in USD per GB-month
	// Default: 0.25
	CostPerGBMonth float64

	// Weekly report recommendation thresholds
	// Defaults: 3000 events, 20 overdue, $5.00/month, 4 high-tier sources
	ReportMaxEvents        int
	ReportMaxOverdue       int
	ReportMaxMonthlyCost   float64
	MinHighPrioritySources int
}

// DefaultConfig returns the default monitoring configuration
func DefaultConfig() Config {
	return Config{
		MaxActiveEvents:        5000,
		MinHighTierRatio:       0.4,
		MaxOverdue:             50,
		MaxEfficientOverdue:    10,
		AvgDocSizeKB:           5,
		CostPerGBMonth:         0.25,
		ReportMaxEvents:        3000,
		ReportMaxOverdue:       20,
		ReportMaxMonthlyCost:   5.0,
		MinHighPrioritySources: 4,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.MaxActiveEvents <= 0 {
		return fmt.Errorf("max_active_events must be positive (got %d)", c.MaxActiveEvents)
	}
	if c.MinHighTierRatio < 0.0 || c.MinHighTierRatio > 1.0 {
		return fmt.Errorf("min_high_tier_ratio must be between 0.0 and 1.0 (got %.2f)", c.MinHighTierRatio)
	}
	if c.MaxOverdue <= 0 {
		return fmt.Errorf("max_overdue must be positive (got %d)", c.MaxOverdue)
	}
	if c.MaxEfficientOverdue <= 0 {
		return fmt.Errorf("max_efficient_overdue must be positive (got %d)", c.MaxEfficientOverdue)
	}
	if c.AvgDocSizeKB <= 0 {
		return fmt.Errorf("avg_doc_size_kb must be positive (got %.2f)", c.AvgDocSizeKB)
	}
	if c.CostPerGBMonth <= 0 {
		return fmt.Errorf("cost_per_gb_month must be positive (got %.4f)", c.CostPerGBMonth)
	}
	if c.ReportMaxEvents <= 0 || c.ReportMaxOverdue <= 0 {
		return fmt.Errorf("report thresholds must be positive (got %d/%d)",
			c.ReportMaxEvents, c.ReportMaxOverdue)
	}
	if c.ReportMaxMonthlyCost <= 0 {
		return fmt.Errorf("report_max_monthly_cost must be positive (got %.2f)", c.ReportMaxMonthlyCost)
	}
	if c.MinHighPrioritySources <= 0 {
		return fmt.Errorf("min_high_priority_sources must be positive (got %d)", c.MinHighPrioritySources)
	}
	return nil
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// Environment variables:
//   - DXB_MONITOR_MAX_EVENTS: Active-event alert threshold (default: 5000)
//   - DXB_MONITOR_MIN_HIGH_RATIO: Minimum high-tier share (default: 0.4)
//   - DXB_MONITOR_MAX_OVERDUE: Overdue alert threshold (default: 50)
//   - DXB_MONITOR_MAX_EFFICIENT_OVERDUE: Overdue count at which cleanup
//     efficiency degrades (default: 10)
//   - DXB_MONITOR_DOC_SIZE_KB: Assumed event size in KB (default: 5)
//   - DXB_MONITOR_COST_PER_GB: Assumed USD per GB-month (default: 0.25)
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := parseEnvInt("DXB_MONITOR_MAX_EVENTS", &cfg.MaxActiveEvents); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("DXB_MONITOR_MIN_HIGH_RATIO", &cfg.MinHighTierRatio); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DXB_MONITOR_MAX_OVERDUE", &cfg.MaxOverdue); err != nil {
		return cfg, err
	}
	if err := parseEnvInt("DXB_MONITOR_MAX_EFFICIENT_OVERDUE", &cfg.MaxEfficientOverdue); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("DXB_MONITOR_DOC_SIZE_KB", &cfg.AvgDocSizeKB); err != nil {
		return cfg, err
	}
	if err := parseEnvFloat("DXB_MONITOR_COST_PER_GB", &cfg.CostPerGBMonth); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return cfg, nil
}

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
