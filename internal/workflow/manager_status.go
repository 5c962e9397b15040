package workflow

import (
	"time"

	"assetwatch/internal/asset"
)

// CycleSummary describes one poll tick.
type CycleSummary struct {
	ID        string
	Timestamp time.Time
	Snapshot  string
	// Results is empty for ticks dispatched by the background loop.
	Results []AssetResult
}

// Changed returns the change events produced by the cycle.
func (c CycleSummary) Changed() []asset.ChangeEvent {
	var out []asset.ChangeEvent
	for _, r := range c.Results {
		if r.Event != nil {
			out = append(out, *r.Event)
		}
	}
	return out
}

// Failed returns the results that ended in an error.
func (c CycleSummary) Failed() []AssetResult {
	var out []AssetResult
	for _, r := range c.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// AssetStatus is the in-memory view of one asset since the Manager started.
type AssetStatus struct {
	Asset       asset.TrackedAsset
	Running     bool
	Digest      string
	LastChecked time.Time
	LastChange  *asset.ChangeEvent
	LastError   string
	LastErrorAt time.Time
}

type assetStatus struct {
	asset       asset.TrackedAsset
	running     bool
	digest      string
	lastChecked time.Time
	lastChange  *asset.ChangeEvent
	lastError   string
	lastErrorAt time.Time
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running   bool
	Phase     Phase
	Interval  time.Duration
	LastError string
	LastCycle CycleSummary
	Assets    []AssetStatus
}

// Status returns the latest workflow information.
func (m *Manager) Status() StatusSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := StatusSummary{
		Running:  m.running,
		Phase:    m.phase,
		Interval: m.interval,
		LastCycle: CycleSummary{
			ID:        m.lastCycle.ID,
			Timestamp: m.lastCycle.Timestamp,
			Snapshot:  m.lastCycle.Snapshot,
		},
		Assets: make([]AssetStatus, 0, len(m.assets)),
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	for _, a := range m.assets {
		info := m.assetInfo[a.LocalName]
		if info == nil {
			continue
		}
		st := AssetStatus{
			Asset:       info.asset,
			Running:     info.running,
			Digest:      info.digest,
			LastChecked: info.lastChecked,
			LastError:   info.lastError,
			LastErrorAt: info.lastErrorAt,
		}
		if info.lastChange != nil {
			ev := *info.lastChange
			st.LastChange = &ev
		}
		summary.Assets = append(summary.Assets, st)
	}
	return summary
}

func (m *Manager) markRunning(a asset.TrackedAsset, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info := m.assetInfo[a.LocalName]; info != nil {
		info.running = running
	}
}

func (m *Manager) markChanged(a asset.TrackedAsset, ev asset.ChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info := m.assetInfo[a.LocalName]; info != nil {
		info.lastChange = &ev
	}
}

func (m *Manager) recordCycle(c CycleSummary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCycle = CycleSummary{ID: c.ID, Timestamp: c.Timestamp, Snapshot: c.Snapshot}
}
