package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dxbevents/lifecycle/internal/dedup"
	"github.com/dxbevents/lifecycle/internal/types"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Duplicate detection tools",
}

var dedupStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show deduplication statistics",
	Long: `Show duplicate counts for today, the last week, and all time, plus the
sources that produce the most duplicates.

Examples:
  lifecycle dedup stats
  lifecycle dedup stats --json`,
	Run: func(cmd *cobra.Command, args []string) {
		engine := newDedupEngine()
		stats, err := engine.Stats(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			if err := printJSON(stats); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s\n", bold("Deduplication statistics"))
		fmt.Printf("  Active events:    %d\n", stats.ActiveEvents)
		fmt.Printf("  Duplicates today: %d\n", stats.TodayDuplicates)
		fmt.Printf("  Duplicates (7d):  %d\n", stats.WeekDuplicates)
		fmt.Printf("  Duplicates total: %d\n", stats.TotalDuplicates)
		fmt.Printf("  Dedup rate:       %s\n", stats.DeduplicationRate)
		if len(stats.TopSources) > 0 {
			fmt.Printf("\nTop duplicate sources:\n")
			for _, src := range stats.TopSources {
				fmt.Printf("  %-24s %d\n", src.SourceName, src.Count)
			}
		}
	},
}

var dedupBulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Merge duplicates already in the store",
	Long: `Scan active events for near-identical groups, merge each group into its
oldest member, and remove the rest. Uses a stricter similarity bar than
ingest-time checks since there is no human in the loop.

Examples:
  lifecycle dedup bulk
  lifecycle dedup bulk --json`,
	Run: func(cmd *cobra.Command, args []string) {
		engine := newDedupEngine()
		result := engine.BulkCleanup(cmd.Context())

		if jsonOutput {
			if err := printJSON(result); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			exitOnFailed(result.Status)
			return
		}

		if result.Status == types.ResultFailed {
			fmt.Fprintf(os.Stderr, "%s Bulk cleanup failed: %s\n", color.RedString("✗"), result.Error)
			os.Exit(1)
		}
		fmt.Printf("%s Bulk cleanup complete\n", color.GreenString("✓"))
		fmt.Printf("  Events analyzed: %d\n", result.EventsAnalyzed)
		fmt.Printf("  Groups found:    %d\n", result.GroupsFound)
		fmt.Printf("  Events merged:   %d\n", result.EventsMerged)
		fmt.Printf("  Events removed:  %d\n", result.EventsRemoved)
	},
}

// newDedupEngine builds the duplicate resolver from environment-backed
// config, exiting on misconfiguration.
func newDedupEngine() *dedup.Engine {
	cfg, err := dedup.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	engine, err := dedup.NewEngine(store, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return engine
}

func init() {
	dedupCmd.AddCommand(dedupStatsCmd)
	dedupCmd.AddCommand(dedupBulkCmd)
	rootCmd.AddCommand(dedupCmd)
}
