package logs

import (
	"encoding/json"
	"strings"

	"assetwatch/internal/logging"
)

// Filter selects log records. The zero Filter matches every line.
type Filter struct {
	Asset    string
	CycleID  string
	MinLevel string
}

// Empty reports whether f matches everything.
func (f Filter) Empty() bool {
	return f.Asset == "" && f.CycleID == "" && f.MinLevel == ""
}

type record struct {
	Level   string `json:"level"`
	Asset   string `json:"asset"`
	CycleID string `json:"cycle_id"`
}

// Match reports whether line satisfies f. Lines that are not JSON records only
// match the empty filter.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	var rec record
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return false
	}
	if f.Asset != "" && !strings.EqualFold(rec.Asset, f.Asset) {
		return false
	}
	if f.CycleID != "" && rec.CycleID != f.CycleID {
		return false
	}
	if f.MinLevel != "" && logging.ParseLevel(rec.Level) < logging.ParseLevel(f.MinLevel) {
		return false
	}
	return true
}
