package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dxbevents/lifecycle/internal/monitor"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check storage health",
	Long: `Evaluate the event store against configured thresholds: total volume,
tier balance, overdue deletions, and missing retention policies.

Examples:
  lifecycle health
  lifecycle health --json
  DXB_MONITOR_MAX_EVENTS=10000 lifecycle health`,
	Run: func(cmd *cobra.Command, args []string) {
		m := newMonitor()
		check, err := m.CheckStorageHealth(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			if err := printJSON(check); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if check.Status != monitor.StatusHealthy {
				os.Exit(1)
			}
			return
		}

		if check.Status == monitor.StatusHealthy {
			fmt.Printf("%s Storage is healthy\n", color.GreenString("✓"))
		} else {
			fmt.Printf("%s Storage needs attention\n", color.RedString("✗"))
		}
		fmt.Printf("\n  Total events:  %d\n", check.Stats.TotalEvents)
		fmt.Printf("  High tier:     %d\n", check.Stats.HighPriority)
		fmt.Printf("  Medium tier:   %d\n", check.Stats.MediumPriority)
		fmt.Printf("  Low tier:      %d\n", check.Stats.LowPriority)
		if check.Stats.Unknown > 0 {
			fmt.Printf("  Unstamped:     %d\n", check.Stats.Unknown)
		}
		for _, alert := range check.Alerts {
			fmt.Printf("  %s %s\n", color.YellowString("!"), alert)
		}
		if check.Status != monitor.StatusHealthy {
			os.Exit(1)
		}
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate the weekly storage report",
	Long: `Generate the weekly storage report: health, per-source breakdown,
cleanup efficiency, cost estimate, recommendations, and week-over-week
trends. Also records this week's snapshot for future trend comparison.

Examples:
  lifecycle report
  lifecycle report --json`,
	Run: func(cmd *cobra.Command, args []string) {
		m := newMonitor()
		report, err := m.GenerateWeeklyReport(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			if err := printJSON(report); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		bold := color.New(color.Bold).SprintFunc()
		fmt.Printf("%s (%s)\n\n", bold("Weekly storage report"), report.ReportDate.Format("2006-01-02"))

		if report.HealthStatus == monitor.StatusHealthy {
			fmt.Printf("Health: %s\n", color.GreenString(report.HealthStatus))
		} else {
			fmt.Printf("Health: %s\n", color.RedString(report.HealthStatus))
		}
		fmt.Printf("Events: %d total (%d high / %d medium / %d low)\n",
			report.StorageStats.TotalEvents, report.StorageStats.HighPriority,
			report.StorageStats.MediumPriority, report.StorageStats.LowPriority)
		fmt.Printf("Cleanup: %s (%d overdue, %d deleted in last 7d, %d pending purge)\n",
			report.CleanupEfficiency.Efficiency, report.CleanupEfficiency.OverdueEvents,
			report.CleanupEfficiency.RecentlyDeleted, report.CleanupEfficiency.PendingHardDelete)
		fmt.Printf("Cost: $%.4f/month (%.6f GB)\n",
			report.CostEstimate.EstimatedMonthlyCostUSD, report.CostEstimate.EstimatedStorageGB)

		if report.Trends != nil {
			fmt.Printf("Trend: %+d events week-over-week (%+.1f%%)\n",
				report.Trends.TotalEventsChange, report.Trends.TotalEventsChangePercent)
		}

		if len(report.SourceBreakdown) > 0 {
			fmt.Printf("\nSources:\n")
			names := make([]string, 0, len(report.SourceBreakdown))
			for name := range report.SourceBreakdown {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				src := report.SourceBreakdown[name]
				fmt.Printf("  %-24s %-6s %dd  active=%d\n",
					name, src.Priority, src.RetentionDays, src.ActiveEvents)
			}
		}

		for _, alert := range report.Alerts {
			fmt.Printf("%s %s\n", color.YellowString("!"), alert)
		}
		if len(report.Recommendations) > 0 {
			fmt.Printf("\nRecommendations:\n")
			for _, rec := range report.Recommendations {
				fmt.Printf("  - %s\n", rec)
			}
		}
	},
}

// newMonitor builds the storage monitor from environment-backed config,
// exiting on misconfiguration.
func newMonitor() *monitor.Monitor {
	cfg, err := monitor.ConfigFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	m, err := monitor.New(store, registry, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return m
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(reportCmd)
}
