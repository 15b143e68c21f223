package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dxbevents/lifecycle/internal/sweeper"
	"github.com/dxbevents/lifecycle/internal/types"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one daily lifecycle sweep",
	Long: `Run one full lifecycle sweep: backfill retention stamps, soft-delete
expired events per tier, and purge soft-deleted events past the grace period.

Examples:
  lifecycle sweep
  lifecycle sweep --json
  DXB_SWEEP_GRACE_HOURS=48 lifecycle sweep`,
	Run: func(cmd *cobra.Command, args []string) {
		sw := newSweeper()
		result := sw.RunDailySweep(cmd.Context())

		if jsonOutput {
			if err := printJSON(result); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			exitOnFailed(result.Status)
			return
		}

		if result.Status == types.ResultFailed {
			fmt.Fprintf(os.Stderr, "%s Sweep failed: %s\n", color.RedString("✗"), result.Error)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Daily sweep complete\n\n", green("✓"))
		fmt.Printf("  Policies backfilled: %d\n", result.PoliciesStamped)
		for _, tier := range types.AllTiers() {
			fmt.Printf("  %-6s tier cleaned: %d\n", tier, result.CleanupResults[tier])
		}
		fmt.Printf("  Hard deleted:        %d\n", result.HardDeleted)
		for _, tier := range types.AllTiers() {
			if msg, ok := result.TierErrors[tier]; ok {
				fmt.Printf("  %s %s tier sweep incomplete: %s\n", color.YellowString("!"), tier, msg)
			}
		}

		if len(result.RetentionStats) > 0 {
			fmt.Printf("\nRetention by source:\n")
			names := make([]string, 0, len(result.RetentionStats))
			for name := range result.RetentionStats {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				st := result.RetentionStats[name]
				fmt.Printf("  %-24s %-6s %dd  active=%d expired=%d\n",
					name, st.Priority, st.RetentionDays, st.ActiveEvents, st.ExpiredEvents)
			}
		}
	},
}

var emergencyCmd = &cobra.Command{
	Use:   "emergency",
	Short: "Force-clean events the daily sweep keeps missing",
	Long: `Find and force-clean severely overdue events and events stuck in the
soft-deleted state, and report whether the store needs attention.

Examples:
  lifecycle emergency
  lifecycle emergency --json`,
	Run: func(cmd *cobra.Command, args []string) {
		sw := newSweeper()
		result := sw.RunEmergencyCheck(cmd.Context())

		if jsonOutput {
			if err := printJSON(result); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			exitOnFailed(result.Status)
			return
		}

		if result.Status == types.ResultFailed {
			fmt.Fprintf(os.Stderr, "%s Emergency check failed: %s\n", color.RedString("✗"), result.Error)
			os.Exit(1)
		}

		fmt.Printf("Severely overdue found: %d\n", result.SeverelyOverdueFound)
		fmt.Printf("Stuck deleted found:    %d\n", result.StuckDeletedFound)
		fmt.Printf("Force soft-deleted:     %d\n", result.ForceSoftDeleted)
		fmt.Printf("Force hard-deleted:     %d\n", result.ForceHardDeleted)
		fmt.Printf("Total active events:    %d\n", result.TotalActiveEvents)
		for _, action := range result.EmergencyActions {
			fmt.Printf("  %s %s\n", color.YellowString("!"), action)
		}
		if result.NeedsAttention {
			fmt.Printf("\n%s Store needs attention\n", color.RedString("✗"))
			os.Exit(1)
		}
		fmt.Printf("\n%s No attention needed\n", color.GreenString("✓"))
	},
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Stamp retention policies onto unstamped events",
	Long: `Backfill source_priority, retention_days, and delete_after onto events
that are missing them, without running the rest of the sweep.

Examples:
  lifecycle backfill
  lifecycle backfill --policies retention.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		sw := newSweeper()
		stamped, err := sw.RunBackfill(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: backfill failed after %d events: %v\n", stamped, err)
			os.Exit(1)
		}
		if jsonOutput {
			_ = printJSON(map[string]int{"policies_stamped": stamped})
			return
		}
		fmt.Printf("%s Stamped retention policies onto %d event(s)\n",
			color.GreenString("✓"), stamped)
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <source>",
	Short: "Soft-delete one source's expired events now",
	Long: `Soft-delete a single source's events whose delete_after has passed or
was never stamped, without waiting for the daily sweep.

Examples:
  lifecycle cleanup social_rising
  lifecycle cleanup 7g_media --json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sw := newSweeper()
		result := sw.RunManualCleanup(cmd.Context(), args[0])

		if jsonOutput {
			if err := printJSON(result); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			exitOnFailed(result.Status)
			return
		}

		if result.Status == types.ResultFailed {
			fmt.Fprintf(os.Stderr, "%s Cleanup failed: %s\n", color.RedString("✗"), result.Error)
			os.Exit(1)
		}
		fmt.Printf("%s Cleaned %d event(s) from %s (%s tier)\n",
			color.GreenString("✓"), result.EventsCleaned, result.Source, result.Priority)
	},
}

// newSweeper builds the sweeper from environment-backed config, exiting
// on misconfiguration. Commands call it after the root pre-run opened
// the store and registry.
func newSweeper() *sweeper.Sweeper {
	cfg, err := sweeper.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	sw, err := sweeper.New(store, registry, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return sw
}

func exitOnFailed(status string) {
	if status == types.ResultFailed {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(emergencyCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(cleanupCmd)
}
