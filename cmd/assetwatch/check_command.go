package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"assetwatch/internal/history"
	"assetwatch/internal/workflow"
)

type checkResultJSON struct {
	Asset   string `json:"asset"`
	Status  string `json:"status"`
	Stage   string `json:"stage,omitempty"`
	Error   string `json:"error,omitempty"`
	Digest  string `json:"digest,omitempty"`
	Primed  bool   `json:"primed"`
	Changed bool   `json:"changed"`
	Video   string `json:"video,omitempty"`
}

type checkJSON struct {
	CycleID  string            `json:"cycleId"`
	Snapshot string            `json:"snapshot"`
	Results  []checkResultJSON `json:"results"`
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var verbose bool
	var noHistory bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one poll cycle (priming unprimed assets first) and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.commandLogger(cfg, verbose)
			if err != nil {
				return err
			}

			var hist *history.Store
			if !noHistory {
				hist, err = history.Open(cfg)
				if err != nil {
					return err
				}
				defer hist.Close()
			}

			mgr, err := workflow.NewManager(cfg, hist, logger)
			if err != nil {
				return err
			}
			summary := mgr.RunCycle(cmd.Context())
			// Waits for notifications still being delivered.
			mgr.Stop()

			if jsonOutput {
				return writeJSON(cmd, checkToJSON(summary))
			}
			fmt.Fprint(cmd.OutOrStdout(), renderCheck(summary))
			if failed := summary.Failed(); len(failed) > 0 {
				return fmt.Errorf("%d of %d assets failed", len(failed), len(summary.Results))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record the cycle in the change history")
	return cmd
}

func checkOutcome(r workflow.AssetResult) string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Err != nil:
		return "failed"
	case r.Changed && r.Event != nil && r.Event.ConversionError != "":
		return "changed (no video)"
	case r.Changed:
		return "changed"
	case r.Primed:
		return "primed"
	default:
		return "unchanged"
	}
}

func checkToJSON(summary workflow.CycleSummary) checkJSON {
	out := checkJSON{CycleID: summary.ID, Snapshot: summary.Snapshot}
	for _, r := range summary.Results {
		row := checkResultJSON{
			Asset:   r.Asset.LocalName,
			Status:  checkOutcome(r),
			Stage:   r.Stage,
			Digest:  r.Digest,
			Primed:  r.Primed,
			Changed: r.Changed,
		}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		if r.Event != nil {
			row.Video = r.Event.VideoPath
		}
		out.Results = append(out.Results, row)
	}
	return out
}

func renderCheck(summary workflow.CycleSummary) string {
	rows := make([][]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		detail := ""
		switch {
		case r.Err != nil:
			detail = fmt.Sprintf("%s: %v", r.Stage, r.Err)
		case r.Event != nil && r.Event.ConversionError != "":
			detail = r.Event.ConversionError
		case r.Event != nil:
			detail = r.Event.SnapshotDir
		}
		rows = append(rows, []string{
			r.Asset.LocalName,
			kindLabel(r.Asset.Kind()),
			checkOutcome(r),
			shortDigest(r.Digest),
			detail,
		})
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Cycle %s (snapshot %s)\n", summary.ID, summary.Snapshot)
	b.WriteString(renderTable(
		[]string{"Asset", "Kind", "Result", "Digest", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	))
	b.WriteString("\n")
	return b.String()
}
