// lifecycle is the operational CLI for the Dubai events deduplication
// and data-lifecycle engine. It ingests scraped events with inline
// duplicate detection, runs the retention sweeps, and reports on
// storage health.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dxbevents/lifecycle/internal/retention"
	"github.com/dxbevents/lifecycle/internal/storage"
)

var (
	dbPath     string
	policyPath string
	jsonOutput bool

	store    storage.Storage
	registry *retention.Registry
)

var rootCmd = &cobra.Command{
	Use:   "lifecycle",
	Short: "Event deduplication and data-lifecycle engine",
	Long: `lifecycle manages the stored event collection for the Dubai events
aggregator: duplicate detection at ingestion time, tiered retention
sweeps, emergency cleanup, and storage health monitoring.

Scheduling is external - each command runs one pass and exits, so cron
or any other scheduler decides cadence.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Optional .env for local development; absence is fine
		_ = godotenv.Load()

		var err error
		store, err = storage.NewStorage(cmd.Context(), &storage.Config{Path: dbPath})
		if err != nil {
			return fmt.Errorf("failed to open event store: %w", err)
		}

		cfg := retention.DefaultConfig()
		if policyPath != "" {
			if cfg, err = retention.LoadConfig(policyPath); err != nil {
				return fmt.Errorf("failed to load retention policies: %w", err)
			}
		}
		if registry, err = retention.NewRegistry(cfg); err != nil {
			return fmt.Errorf("invalid retention policies: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath(), "Path to the SQLite event store")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policies", "", "Retention policy YAML file (built-in defaults when unset)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON instead of formatted text")
}

func defaultDBPath() string {
	if path := os.Getenv("DXB_DB_PATH"); path != "" {
		return path
	}
	return storage.DefaultConfig().Path
}

// printJSON writes v as indented JSON to stdout
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
