package daemon

import (
	"time"

	"assetwatch/internal/archive"
	"assetwatch/internal/deps"
	"assetwatch/internal/history"
	"assetwatch/internal/workflow"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Phase        string             `json:"phase"`
	Interval     string             `json:"interval"`
	LastError    string             `json:"lastError,omitempty"`
	LastCycle    *CycleResponse     `json:"lastCycle,omitempty"`
	HistoryPath  string             `json:"historyPath"`
	LockFilePath string             `json:"lockFilePath"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// LogsResponse is the body of GET /api/logs. Offset resumes the next read.
type LogsResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// CycleResponse identifies one poll tick.
type CycleResponse struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  string    `json:"snapshot"`
}

// DependencyStatus mirrors deps.Status for JSON clients.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// AssetResponse merges live workflow state with the persisted asset state.
type AssetResponse struct {
	Name                string     `json:"name"`
	RemotePath          string     `json:"remotePath"`
	Kind                string     `json:"kind"`
	Running             bool       `json:"running"`
	Digest              string     `json:"digest,omitempty"`
	Checks              int64      `json:"checks"`
	Changes             int64      `json:"changes"`
	ConsecutiveFailures int64      `json:"consecutiveFailures"`
	LastCheckedAt       *time.Time `json:"lastCheckedAt,omitempty"`
	LastChangedAt       *time.Time `json:"lastChangedAt,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastErrorAt         *time.Time `json:"lastErrorAt,omitempty"`
}

// EventResponse is one change history row.
type EventResponse struct {
	ID              int64     `json:"id"`
	CycleID         string    `json:"cycleId"`
	Asset           string    `json:"asset"`
	RemotePath      string    `json:"remotePath"`
	DetectedAt      time.Time `json:"detectedAt"`
	SnapshotDir     string    `json:"snapshotDir"`
	ArchivedPath    string    `json:"archivedPath"`
	VideoPath       string    `json:"videoPath,omitempty"`
	PreviousDigest  string    `json:"previousDigest"`
	CurrentDigest   string    `json:"currentDigest"`
	Bytes           int64     `json:"bytes"`
	ConversionError string    `json:"conversionError,omitempty"`
}

// ErrorResponse is one recorded cycle failure.
type ErrorResponse struct {
	ID         int64     `json:"id"`
	CycleID    string    `json:"cycleId"`
	Asset      string    `json:"asset"`
	Stage      string    `json:"stage"`
	Category   string    `json:"category"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// SnapshotResponse is one snapshot directory.
type SnapshotResponse struct {
	Name  string         `json:"name"`
	Time  time.Time      `json:"time"`
	Path  string         `json:"path"`
	Size  int64          `json:"size"`
	Files []SnapshotFile `json:"files"`
}

// SnapshotFile is one file inside a snapshot.
type SnapshotFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func fromStatus(status Status) StatusResponse {
	resp := StatusResponse{
		Running:      status.Running,
		PID:          status.PID,
		Phase:        string(status.Workflow.Phase),
		Interval:     status.Workflow.Interval.String(),
		LastError:    status.Workflow.LastError,
		HistoryPath:  status.HistoryPath,
		LockFilePath: status.LockFilePath,
		Dependencies: fromDeps(status.Dependencies),
	}
	if c := status.Workflow.LastCycle; c.ID != "" {
		resp.LastCycle = &CycleResponse{ID: c.ID, Timestamp: c.Timestamp.UTC(), Snapshot: c.Snapshot}
	}
	return resp
}

func fromDeps(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

func fromAssets(live []workflow.AssetStatus, stored []history.AssetState) []AssetResponse {
	byName := make(map[string]history.AssetState, len(stored))
	for _, st := range stored {
		byName[st.Asset] = st
	}
	out := make([]AssetResponse, 0, len(live))
	for _, a := range live {
		resp := AssetResponse{
			Name:       a.Asset.LocalName,
			RemotePath: a.Asset.RemotePath,
			Kind:       a.Asset.Kind(),
			Running:    a.Running,
			Digest:     a.Digest,
			LastError:  a.LastError,
		}
		if st, ok := byName[a.Asset.LocalName]; ok {
			resp.Checks = st.Checks
			resp.Changes = st.Changes
			resp.ConsecutiveFailures = st.ConsecutiveFailures
			if resp.Digest == "" {
				resp.Digest = st.Digest
			}
			if resp.LastError == "" && st.ConsecutiveFailures > 0 {
				resp.LastError = st.LastError
			}
			resp.LastCheckedAt = optionalTime(st.LastCheckedAt)
			resp.LastChangedAt = optionalTime(st.LastChangedAt)
			resp.LastErrorAt = optionalTime(st.LastErrorAt)
		}
		if resp.LastCheckedAt == nil {
			resp.LastCheckedAt = optionalTime(a.LastChecked)
		}
		out = append(out, resp)
	}
	return out
}

func fromEvents(events []history.Event) []EventResponse {
	out := make([]EventResponse, len(events))
	for i, ev := range events {
		out[i] = EventResponse{
			ID:              ev.ID,
			CycleID:         ev.CycleID,
			Asset:           ev.Asset,
			RemotePath:      ev.RemotePath,
			DetectedAt:      ev.DetectedAt.UTC(),
			SnapshotDir:     ev.SnapshotDir,
			ArchivedPath:    ev.ArchivedPath,
			VideoPath:       ev.VideoPath,
			PreviousDigest:  ev.PreviousDigest,
			CurrentDigest:   ev.CurrentDigest,
			Bytes:           ev.Bytes,
			ConversionError: ev.ConversionError,
		}
	}
	return out
}

func fromErrors(rows []history.CycleError) []ErrorResponse {
	out := make([]ErrorResponse, len(rows))
	for i, row := range rows {
		out[i] = ErrorResponse{
			ID:         row.ID,
			CycleID:    row.CycleID,
			Asset:      row.Asset,
			Stage:      row.Stage,
			Category:   row.Category,
			Message:    row.Message,
			OccurredAt: row.OccurredAt.UTC(),
		}
	}
	return out
}

func fromSnapshots(snaps []archive.Snapshot) []SnapshotResponse {
	out := make([]SnapshotResponse, len(snaps))
	for i, snap := range snaps {
		files := make([]SnapshotFile, len(snap.Files))
		for j, f := range snap.Files {
			files[j] = SnapshotFile{Name: f.Name, Size: f.Size}
		}
		out[i] = SnapshotResponse{
			Name:  snap.Name,
			Time:  snap.Time.UTC(),
			Path:  snap.Path,
			Size:  snap.Size(),
			Files: files,
		}
	}
	return out
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
