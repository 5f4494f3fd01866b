package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dea-madrid/address-validation/internal/batch"
)

var (
	batchPending     bool
	batchBackfill    bool
	batchConcurrency int
)

// runCeiling mirrors the runner's per-run record cap; larger id sets
// are split into consecutive runs.
const runCeiling = 50

var batchCmd = &cobra.Command{
	Use:   "batch [record-id...]",
	Short: "Validate installation records in bulk",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices(cmd.Context())
		if err != nil {
			return err
		}
		defer svc.Close()

		ids := args
		switch {
		case batchBackfill:
			ids, err = svc.installs.ListIDs(cmd.Context(), 0)
		case batchPending || len(args) == 0:
			// Without explicit ids, re-run whatever is flagged pending.
			ids, err = svc.store.ListPending(cmd.Context(), 0)
		}
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Println("nothing to validate")
			return nil
		}

		bar := progressbar.Default(int64(len(ids)), "validating")
		total := batch.Summary{}
		for offset := 0; offset < len(ids); offset += runCeiling {
			end := offset + runCeiling
			if end > len(ids) {
				end = len(ids)
			}

			summary, err := svc.runner.Run(cmd.Context(), ids[offset:end], batchConcurrency)
			if summary != nil {
				total.Processed += summary.Processed
				total.Successful += summary.Successful
				total.WithIssues += summary.WithIssues
				total.Failed += summary.Failed
				_ = bar.Add(summary.Processed)
			}
			if err != nil {
				_ = bar.Finish()
				return err
			}
		}
		_ = bar.Finish()

		fmt.Printf("\nprocessed %d: %d successful (%d with issues), %d failed\n",
			total.Processed, total.Successful, total.WithIssues, total.Failed)
		return nil
	},
}

func init() {
	batchCmd.Flags().BoolVar(&batchPending, "pending", false, "validate every record flagged for reprocessing")
	batchCmd.Flags().BoolVar(&batchBackfill, "backfill", false, "validate every installation record")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 5, "concurrent validations per chunk")
	rootCmd.AddCommand(batchCmd)
}
