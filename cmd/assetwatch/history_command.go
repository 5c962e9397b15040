package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"assetwatch/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var assetName string
	var limit int
	var since string
	var showErrors bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded changes (or cycle errors) from the change history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			filter := history.Filter{Asset: assetName, Limit: limit}
			if since != "" {
				ts, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("invalid --since %q: expected RFC3339", since)
				}
				filter.Since = ts
			}

			hist, err := history.Open(cfg)
			if err != nil {
				return err
			}
			defer hist.Close()

			if showErrors {
				items, err := hist.Errors(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No cycle errors recorded")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderErrors(items))
				return nil
			}

			events, err := hist.Events(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, events)
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderEvents(events))
			return nil
		},
	}
	cmd.Flags().StringVar(&assetName, "asset", "", "Only show entries for this local asset name")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries")
	cmd.Flags().StringVar(&since, "since", "", "Only show entries at or after this RFC3339 time")
	cmd.Flags().BoolVar(&showErrors, "errors", false, "List cycle errors instead of changes")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func renderEvents(events []history.Event) string {
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		video := "-"
		switch {
		case ev.ConversionError != "":
			video = "failed"
		case ev.VideoPath != "":
			video = "yes"
		}
		rows = append(rows, []string{
			strconv.FormatInt(ev.ID, 10),
			formatTimestamp(ev.DetectedAt),
			ev.Asset,
			shortDigest(ev.PreviousDigest) + " → " + shortDigest(ev.CurrentDigest),
			humanSize(ev.Bytes),
			video,
		})
	}
	return renderTable(
		[]string{"ID", "Detected", "Asset", "Digest", "Size", "Video"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	)
}

func renderErrors(items []history.CycleError) string {
	rows := make([][]string, 0, len(items))
	for _, ce := range items {
		rows = append(rows, []string{
			formatTimestamp(ce.OccurredAt),
			ce.Asset,
			ce.Stage,
			ce.Category,
			ce.Message,
		})
	}
	return renderTable(
		[]string{"When", "Asset", "Stage", "Category", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
