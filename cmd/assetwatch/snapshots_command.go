package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"assetwatch/internal/archive"
)

type snapshotJSON struct {
	Name  string   `json:"name"`
	Path  string   `json:"path"`
	Size  int64    `json:"size"`
	Files []string `json:"files"`
}

func newSnapshotsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "List archived snapshot directories, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			snaps, err := archive.List(cfg.Paths.DataDir)
			if err != nil {
				return err
			}
			if limit > 0 && len(snaps) > limit {
				snaps = snaps[:limit]
			}

			if jsonOutput {
				out := make([]snapshotJSON, 0, len(snaps))
				for _, s := range snaps {
					row := snapshotJSON{Name: s.Name, Path: s.Path, Size: s.Size(), Files: []string{}}
					for _, f := range s.Files {
						row.Files = append(row.Files, f.Name)
					}
					out = append(out, row)
				}
				return writeJSON(cmd, out)
			}

			if len(snaps) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No snapshots in %s\n", cfg.Paths.DataDir)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSnapshots(snaps))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of snapshots (0 lists all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func renderSnapshots(snaps []archive.Snapshot) string {
	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		names := make([]string, 0, len(s.Files))
		for _, f := range s.Files {
			names = append(names, f.Name)
		}
		rows = append(rows, []string{
			s.Name,
			relativeTime(s.Time),
			strconv.Itoa(len(s.Files)),
			humanSize(s.Size()),
			strings.Join(names, ", "),
		})
	}
	return renderTable(
		[]string{"Snapshot", "Age", "Files", "Size", "Contents"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}
