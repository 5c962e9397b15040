package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"assetwatch/internal/archive"
	"assetwatch/internal/logging"
	"assetwatch/internal/services"
)

// Phase is the Manager lifecycle position.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePriming Phase = "priming"
	PhasePolling Phase = "polling"
	PhaseStopped Phase = "stopped"
)

// Start primes every asset and begins polling in the background.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.interval <= 0 {
		m.mu.Unlock()
		return errors.New("poll interval must be positive")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.phase = PhasePriming
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
	return nil
}

// Stop cancels polling and waits for in-flight cycles and notifications.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	wasRunning := m.running
	m.running = false
	m.cancel = nil
	if wasRunning {
		m.phase = PhaseStopped
	}
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.inflight.Wait()
}

func (m *Manager) run(ctx context.Context) {
	defer m.wg.Done()

	m.Prime(ctx)
	if ctx.Err() != nil {
		return
	}

	m.setPhase(PhasePolling)
	m.logger.Info("polling started",
		logging.Duration("interval", m.interval),
		logging.Int("assets", len(m.assets)),
		logging.String(logging.FieldEventType, "polling_started"),
	)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("polling stopped", logging.String(logging.FieldEventType, "polling_stopped"))
			return
		case <-ticker.C:
			m.dispatch(ctx, m.newCycleID(), m.now(), nil)
		}
	}
}

// Prime fetches the Reference slot of every asset that has none. Failures
// are recorded and the asset is primed again at the start of its next cycle.
func (m *Manager) Prime(ctx context.Context) {
	cycleID := m.newCycleID()
	ctx = services.WithCycleID(ctx, cycleID)

	var g errgroup.Group
	for _, a := range m.assets {
		g.Go(func() error {
			token := m.tokens[a.LocalName]
			token.Lock()
			defer token.Unlock()

			actx := services.WithAsset(ctx, a.LocalName)
			if _, err := m.primeIfNeeded(actx, a); err != nil {
				m.fail(actx, a, cycleID, stagePrime, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// RunCycle runs one poll tick synchronously and returns its per-asset
// outcomes. Notifications may still be in flight when it returns; Stop
// waits for them.
func (m *Manager) RunCycle(ctx context.Context) CycleSummary {
	var wg sync.WaitGroup
	cycleID := m.newCycleID()
	ts := m.now()
	results := m.dispatch(ctx, cycleID, ts, &wg)
	wg.Wait()

	summary := CycleSummary{
		ID:        cycleID,
		Timestamp: ts,
		Snapshot:  archive.SnapshotName(ts),
		Results:   make([]AssetResult, len(results)),
	}
	for i, r := range results {
		summary.Results[i] = *r
	}
	m.recordCycle(summary)
	return summary
}

// dispatch launches one goroutine per asset. The returned results are only
// complete once wait (when non-nil) has been waited on.
func (m *Manager) dispatch(ctx context.Context, cycleID string, ts time.Time, wait *sync.WaitGroup) []*AssetResult {
	ctx = services.WithCycleID(ctx, cycleID)
	m.logger.Debug("poll cycle started",
		logging.String(logging.FieldCycleID, cycleID),
		logging.String("snapshot", archive.SnapshotName(ts)),
	)

	results := make([]*AssetResult, len(m.assets))
	for i, a := range m.assets {
		results[i] = &AssetResult{Asset: a}
		if wait != nil {
			wait.Add(1)
		}
		m.inflight.Add(1)
		go func(res *AssetResult) {
			defer m.inflight.Done()
			if wait != nil {
				defer wait.Done()
			}
			*res = m.runAsset(services.WithAsset(ctx, a.LocalName), a, cycleID, ts)
		}(results[i])
	}
	if wait == nil {
		m.recordCycle(CycleSummary{ID: cycleID, Timestamp: ts, Snapshot: archive.SnapshotName(ts)})
	}
	return results
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}
