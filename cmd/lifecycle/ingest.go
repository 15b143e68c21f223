package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dxbevents/lifecycle/internal/dedup"
	"github.com/dxbevents/lifecycle/internal/storage"
	"github.com/dxbevents/lifecycle/internal/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest raw events through dedup and retention stamping",
	Long: `Read a JSON array of raw events from a file (or stdin when no file is
given), run each through the duplicate resolver, stamp retention policy
onto accepted events, and insert them.

Examples:
  lifecycle ingest events.json
  cat events.json | lifecycle ingest
  lifecycle ingest events.json --json`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var r io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer f.Close()
			r = f
		}

		var raws []types.RawEvent
		if err := json.NewDecoder(r).Decode(&raws); err != nil {
			fmt.Fprintf(os.Stderr, "Error: decoding raw events: %v\n", err)
			os.Exit(1)
		}

		engine := newDedupEngine()
		summary := runIngest(cmd, engine, raws)

		if jsonOutput {
			if err := printJSON(summary); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		fmt.Printf("\n%s Ingested %d event(s): %d inserted, %d duplicates, %d invalid, %d failed\n",
			color.GreenString("✓"), summary.Received, summary.Inserted,
			summary.Duplicates, summary.Invalid, summary.Failed)
		if summary.FailedOpen > 0 {
			fmt.Printf("%s %d event(s) admitted without duplicate verification\n",
				color.YellowString("!"), summary.FailedOpen)
		}
	},
}

type ingestSummary struct {
	Received   int `json:"received"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Invalid    int `json:"invalid"`
	Failed     int `json:"failed"`

	// FailedOpen counts events inserted while the duplicate resolver was
	// degraded, so a later bulk pass can re-verify them
	FailedOpen int `json:"failed_open"`
}

func runIngest(cmd *cobra.Command, engine *dedup.Engine, raws []types.RawEvent) *ingestSummary {
	ctx := cmd.Context()
	summary := &ingestSummary{Received: len(raws)}
	for i := range raws {
		raw := &raws[i]
		if err := raw.Validate(); err != nil {
			log.Printf("[INGEST] Skipping invalid event %q: %v", raw.Title, err)
			summary.Invalid++
			continue
		}
		ev := raw.ToEvent(time.Now().UTC())
		decision, err := engine.CheckEvent(ctx, ev)
		if err != nil {
			log.Printf("[INGEST] Duplicate check failed for %q: %v", ev.Title, err)
			summary.Failed++
			continue
		}
		if decision.IsDuplicate {
			if !jsonOutput {
				fmt.Printf("  %s duplicate of %s (%.2f): %s\n",
					color.YellowString("≈"), decision.DuplicateOf, decision.Similarity, ev.Title)
			}
			summary.Duplicates++
			continue
		}
		if decision.FailedOpen {
			log.Printf("[INGEST] Admitting %q without duplicate check: %s", ev.Title, decision.FailureReason)
			summary.FailedOpen++
		}
		registry.Stamp(ev)
		if err := store.InsertEvent(ctx, ev); err != nil {
			if storage.IsDuplicateKey(err) {
				// The unique index caught what scoring missed
				if !jsonOutput {
					fmt.Printf("  %s exact duplicate rejected by index: %s\n",
						color.YellowString("≈"), ev.Title)
				}
				summary.Duplicates++
				continue
			}
			log.Printf("[INGEST] Insert failed for %q: %v", ev.Title, err)
			summary.Failed++
			continue
		}
		summary.Inserted++
	}
	return summary
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
