package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"assetwatch/internal/config"
	"assetwatch/internal/daemon"
	"assetwatch/internal/deps"
	"assetwatch/internal/history"
	"assetwatch/internal/preflight"
)

const daemonProbeTimeout = 3 * time.Second

// statusReport is everything the status command prints.
type statusReport struct {
	DaemonRunning bool
	Daemon        *daemon.StatusResponse
	DaemonErr     string
	Dependencies  []deps.Status
	Checks        []preflight.Result
	Notifications preflight.Result
	Assets        []assetRow
}

type assetRow struct {
	Name       string
	Kind       string
	Digest     string
	Checks     int64
	Changes    int64
	Failures   int64
	LastCheck  time.Time
	LastChange time.Time
	LastError  string
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and per-asset status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report, err := collectStatus(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderStatus(report, shouldColorize(out)))
			return nil
		},
	}
}

func collectStatus(ctx context.Context, cfg *config.Config) (statusReport, error) {
	var report statusReport

	running, err := daemonRunning(cfg.LockPath())
	if err != nil {
		return report, err
	}
	report.DaemonRunning = running
	if running {
		resp, err := fetchDaemonStatus(ctx, cfg.API.Bind, cfg.API.Token)
		if err != nil {
			report.DaemonErr = err.Error()
		} else {
			report.Daemon = resp
		}
	}

	report.Dependencies = preflight.CheckSystemDeps(ctx, cfg)
	report.Checks = preflight.RunAll(ctx, cfg)
	report.Notifications = preflight.CheckNotificationsFromConfig(cfg)

	assets, err := cfg.TrackedAssets()
	if err != nil {
		return report, err
	}
	states := map[string]history.AssetState{}
	hist, err := history.Open(cfg)
	if err != nil {
		return report, err
	}
	defer hist.Close()
	list, err := hist.States(ctx)
	if err != nil {
		return report, err
	}
	for _, st := range list {
		states[st.Asset] = st
	}
	for _, a := range assets.All() {
		st := states[a.LocalName]
		report.Assets = append(report.Assets, assetRow{
			Name:       a.LocalName,
			Kind:       a.Kind(),
			Digest:     st.Digest,
			Checks:     st.Checks,
			Changes:    st.Changes,
			Failures:   st.ConsecutiveFailures,
			LastCheck:  st.LastCheckedAt,
			LastChange: st.LastChangedAt,
			LastError:  st.LastError,
		})
	}
	return report, nil
}

// daemonRunning reports whether another process holds the daemon lock.
func daemonRunning(lockPath string) (bool, error) {
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe daemon lock: %w", err)
	}
	if locked {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

func fetchDaemonStatus(ctx context.Context, bind, token string) (*daemon.StatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, daemonProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+dialAddress(bind)+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query daemon api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.New("daemon api rejected the token; check api.token")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("daemon api returned %s", resp.Status)
	}
	var status daemon.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode daemon status: %w", err)
	}
	return &status, nil
}

// dialAddress maps wildcard bind hosts to loopback.
func dialAddress(bind string) string {
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func renderStatus(r statusReport, colorize bool) string {
	var b strings.Builder

	var daemonLines []statusLine
	switch {
	case !r.DaemonRunning:
		daemonLines = append(daemonLines, statusLine{"Daemon", statusWarn, "Not running"})
	case r.Daemon == nil:
		daemonLines = append(daemonLines, statusLine{"Daemon", statusWarn, "Running (API unavailable: " + r.DaemonErr + ")"})
	default:
		d := r.Daemon
		daemonLines = append(daemonLines,
			statusLine{"Daemon", statusOK, fmt.Sprintf("Running (PID %d)", d.PID)},
			statusLine{"Phase", statusInfo, d.Phase + ", every " + d.Interval},
		)
		if d.LastCycle != nil {
			daemonLines = append(daemonLines, statusLine{"Last cycle", statusInfo,
				fmt.Sprintf("%s (%s)", d.LastCycle.Snapshot, relativeTime(d.LastCycle.Timestamp))})
		}
		if d.LastError != "" {
			daemonLines = append(daemonLines, statusLine{"Last error", statusError, d.LastError})
		}
	}
	renderSection(&b, "Daemon", daemonLines, colorize)

	depLines := make([]statusLine, 0, len(r.Dependencies))
	for _, dep := range r.Dependencies {
		line := statusLine{label: dep.Name}
		switch {
		case dep.Available:
			line.kind = statusOK
			line.message = dep.Detail
		case dep.Optional:
			line.kind = statusWarn
			line.message = "Not found (optional): " + dep.Detail
		default:
			line.kind = statusError
			line.message = dep.Detail
		}
		depLines = append(depLines, line)
	}
	renderSection(&b, "Dependencies", depLines, colorize)

	checkLines := make([]statusLine, 0, len(r.Checks)+1)
	for _, c := range r.Checks {
		kind := statusOK
		if !c.Passed {
			kind = statusError
		}
		checkLines = append(checkLines, statusLine{c.Name, kind, c.Detail})
	}
	notifyKind := statusOK
	switch {
	case !r.Notifications.Passed:
		notifyKind = statusError
	case r.Notifications.Detail == "Disabled":
		notifyKind = statusInfo
	}
	checkLines = append(checkLines, statusLine{"Notifications", notifyKind, r.Notifications.Detail})
	renderSection(&b, "Checks", checkLines, colorize)

	if len(r.Assets) > 0 {
		rows := make([][]string, 0, len(r.Assets))
		for _, a := range r.Assets {
			lastError := a.LastError
			if lastError == "" {
				lastError = "-"
			}
			rows = append(rows, []string{
				a.Name,
				kindLabel(a.Kind),
				shortDigest(a.Digest),
				strconv.FormatInt(a.Checks, 10),
				strconv.FormatInt(a.Changes, 10),
				strconv.FormatInt(a.Failures, 10),
				relativeTime(a.LastCheck),
				relativeTime(a.LastChange),
				lastError,
			})
		}
		b.WriteString(renderTable(
			[]string{"Asset", "Kind", "Digest", "Checks", "Changes", "Failures", "Checked", "Changed", "Last Error"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
		))
		b.WriteString("\n")
	}
	return b.String()
}
