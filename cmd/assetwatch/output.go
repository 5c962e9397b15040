package main

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var titleCaser = cases.Title(language.English)

// kindLabel turns an asset kind ("texture") into a column label ("Texture").
func kindLabel(kind string) string {
	return titleCaser.String(kind)
}

func shortDigest(d string) string {
	d = strings.TrimSpace(d)
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

func humanSize(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// relativeTime renders ts as "3 minutes ago", or "never" for the zero time.
func relativeTime(ts time.Time) string {
	if ts.IsZero() {
		return "never"
	}
	return humanize.Time(ts)
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}
