// Package retention maps event origins to tiered retention policies and
// stamps lifecycle fields on records at acceptance time and in backfill
// passes. The tier configuration is an immutable value constructed once and
// injected wherever it is needed; nothing in this package reads ambient
// state.
package retention

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/dxbevents/lifecycle/internal/types"
)

// TierPolicy describes one retention tier: which sources belong to it and
// how many days past an event's end date its records stay active.
type TierPolicy struct {
	Sources       []string `yaml:"sources"`
	RetentionDays int      `yaml:"retention_days"`
	Reason        string   `yaml:"reason,omitempty"`
}

// Config is the full tier configuration. Unknown sources fall through to
// the low tier.
type Config struct {
	High   TierPolicy `yaml:"high"`
	Medium TierPolicy `yaml:"medium"`
	Low    TierPolicy `yaml:"low"`
}

// DefaultConfig returns the default source-tier mapping
//
// These defaults reflect observed source quality:
// - High: curated calendars with strong family coverage, kept a week for analytics
// - Medium: broad aggregators with decent coverage
// - Low: social/influencer feeds with limited appeal, minimal retention
func DefaultConfig() Config {
	return Config{
		High: TierPolicy{
			Sources:       []string{"dubai_calendar", "timeout_dubai", "timeout_kids_uae", "platinumlist"},
			RetentionDays: 7,
			Reason:        "High-value family events, keep for analytics",
		},
		Medium: TierPolicy{
			Sources: []string{
				"eventbrite_dubai", "meetup_dubai", "whats_on_dubai",
				"timeout_market_dubai", "timeout_dxb", "dubai_web_events",
			},
			RetentionDays: 3,
			Reason:        "Good coverage, moderate retention",
		},
		Low: TierPolicy{
			Sources:       []string{"7g_media", "social_rising", "instagram_influencers"},
			RetentionDays: 1,
			Reason:        "Limited family appeal, minimal retention",
		},
	}
}

// LoadConfig loads a tier configuration from a YAML file
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading retention config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing retention config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid retention config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the tier configuration for sane windows and disjoint
// source lists
func (c Config) Validate() error {
	tiers := map[types.Tier]TierPolicy{
		types.TierHigh:   c.High,
		types.TierMedium: c.Medium,
		types.TierLow:    c.Low,
	}
	seen := make(map[string]types.Tier)
	for tier, policy := range tiers {
		if policy.RetentionDays < 1 || policy.RetentionDays > 365 {
			return fmt.Errorf("%s retention_days must be between 1 and 365 (got %d)",
				tier, policy.RetentionDays)
		}
		for _, source := range policy.Sources {
			if source == "" {
				return fmt.Errorf("%s tier contains an empty source name", tier)
			}
			if other, dup := seen[source]; dup {
				return fmt.Errorf("source %q assigned to both %s and %s tiers", source, other, tier)
			}
			seen[source] = tier
		}
	}
	return nil
}

// Policy returns the tier policy for a given tier
func (c Config) Policy(tier types.Tier) TierPolicy {
	switch tier {
	case types.TierHigh:
		return c.High
	case types.TierMedium:
		return c.Medium
	default:
		return c.Low
	}
}

// Registry resolves source names to tiers and retention windows.
// It is a pure lookup over an immutable configuration.
type Registry struct {
	cfg    Config
	byName map[string]types.Tier
}

// NewRegistry creates a registry from a validated configuration
func NewRegistry(cfg Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	byName := make(map[string]types.Tier)
	for _, tier := range types.AllTiers() {
		for _, source := range cfg.Policy(tier).Sources {
			byName[source] = tier
		}
	}
	return &Registry{cfg: cfg, byName: byName}, nil
}

// PriorityFor returns the tier for a source name.
// Unknown sources default to the low tier.
func (r *Registry) PriorityFor(sourceName string) types.Tier {
	if tier, ok := r.byName[sourceName]; ok {
		return tier
	}
	return types.TierLow
}

// WindowFor returns the retention window in days for a tier
func (r *Registry) WindowFor(tier types.Tier) int {
	return r.cfg.Policy(tier).RetentionDays
}

// Sources returns the configured source names for a tier, sorted
func (r *Registry) Sources(tier types.Tier) []string {
	sources := append([]string(nil), r.cfg.Policy(tier).Sources...)
	sort.Strings(sources)
	return sources
}

// Stamp assigns the retention fields derived from the event's origin:
// source_priority, retention_days, and - when the end date is known -
// delete_after = end_date + retention window. Existing delete_after values
// are recomputed so a tier change propagates.
func (r *Registry) Stamp(ev *types.Event) {
	tier := r.PriorityFor(ev.SourceName)
	days := r.WindowFor(tier)
	ev.SourcePriority = tier
	ev.RetentionDays = days
	if ev.EndDate != nil {
		deleteAfter := ev.EndDate.AddDate(0, 0, days)
		ev.DeleteAfter = &deleteAfter
	}
}
