package workflow

import (
	"context"
	"errors"
	"time"

	"assetwatch/internal/asset"
	"assetwatch/internal/history"
	"assetwatch/internal/logging"
	"assetwatch/internal/services"
)

const (
	stagePrime   = "prime"
	stageFetch   = "fetch"
	stageCompare = "compare"
	stageArchive = "archive"
	stageConvert = "convert"
	stageRecord  = "record"
)

// AssetResult is the outcome of one asset within a cycle.
type AssetResult struct {
	Asset   asset.TrackedAsset
	Primed  bool
	Skipped bool
	Changed bool
	Digest  string
	Event   *asset.ChangeEvent
	Stage   string
	Err     error
}

// runAsset executes prime → fetch Latest → compare → archive for one asset.
// It never blocks on a running cycle of the same asset.
func (m *Manager) runAsset(ctx context.Context, a asset.TrackedAsset, cycleID string, ts time.Time) AssetResult {
	result := AssetResult{Asset: a}
	logger := logging.WithContext(ctx, m.logger)

	token := m.tokens[a.LocalName]
	if !token.TryLock() {
		logger.Info("previous cycle still running; skipping",
			logging.String(logging.FieldEventType, "asset_cycle_skipped"),
		)
		result.Skipped = true
		return result
	}
	defer token.Unlock()

	m.markRunning(a, true)
	defer m.markRunning(a, false)

	primed, err := m.primeIfNeeded(ctx, a)
	if err != nil {
		return m.fail(ctx, a, cycleID, stagePrime, err)
	}
	result.Primed = primed

	fetched, err := m.fetcher.Fetch(ctx, a, asset.SlotLatest)
	if err != nil {
		return m.fail(ctx, a, cycleID, stageFetch, err)
	}

	cmp, err := m.detector.Compare(a)
	if err != nil {
		return m.fail(ctx, a, cycleID, stageCompare, err)
	}
	result.Digest = string(cmp.Latest)
	m.recordCheck(ctx, a, string(cmp.Latest))

	if !cmp.Changed() {
		logger.Debug("asset unchanged", logging.String("digest", cmp.Latest.Short()))
		return result
	}

	logger.Info("asset changed",
		logging.String(logging.FieldEventType, "asset_changed"),
		logging.String("previous_digest", cmp.Reference.Short()),
		logging.String("current_digest", cmp.Latest.Short()),
		logging.Size("size", fetched.Bytes),
	)

	archived, err := m.archiver.Archive(ctx, a, ts)
	if err != nil {
		return m.fail(ctx, a, cycleID, stageArchive, err)
	}

	event := asset.ChangeEvent{
		Asset:          a,
		DetectedAt:     ts,
		CycleID:        cycleID,
		SnapshotDir:    archived.SnapshotDir,
		ArchivedPath:   archived.ArchivedPath,
		VideoPath:      archived.VideoPath,
		PreviousDigest: string(cmp.Reference),
		CurrentDigest:  string(cmp.Latest),
		Bytes:          archived.Bytes,
	}
	if archived.ConversionErr != nil {
		event.ConversionError = archived.ConversionErr.Error()
		m.recordFailure(ctx, a, cycleID, stageConvert, archived.ConversionErr)
		m.notifyError(ctx, a, stageConvert, archived.ConversionErr)
	}

	if m.history != nil {
		if _, err := m.history.RecordChange(ctx, event); err != nil {
			logging.WarnWithContext(logger, "change history write failed", "history_write_failed",
				logging.Error(err),
				logging.String(logging.FieldStage, stageRecord),
				logging.String(logging.FieldErrorHint, "check the history database under state_dir"),
				logging.String(logging.FieldImpact, "snapshot exists on disk but is missing from history"),
			)
		}
	}

	m.markChanged(a, event)
	m.notifyChange(ctx, event)

	result.Changed = true
	result.Event = &event
	return result
}

// primeIfNeeded fetches the Reference slot when it is absent and reports
// whether it did.
func (m *Manager) primeIfNeeded(ctx context.Context, a asset.TrackedAsset) (bool, error) {
	primed, err := m.store.Primed(a)
	if err != nil {
		return false, err
	}
	if primed {
		return false, nil
	}
	res, err := m.fetcher.Fetch(ctx, a, asset.SlotReference)
	if err != nil {
		return false, err
	}
	logging.WithContext(ctx, m.logger).Info("asset primed",
		logging.String(logging.FieldEventType, "asset_primed"),
		logging.String("digest", res.Digest.Short()),
		logging.Size("size", res.Bytes),
	)
	return true, nil
}

// fail contains err to the (asset, cycle) pair.
func (m *Manager) fail(ctx context.Context, a asset.TrackedAsset, cycleID, stage string, err error) AssetResult {
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logging.WithContext(ctx, m.logger).Debug("cycle cancelled", logging.String(logging.FieldStage, stage))
		return AssetResult{Asset: a, Stage: stage, Err: err}
	}

	logging.ErrorWithContext(logging.WithContext(ctx, m.logger), "asset cycle failed", "asset_cycle_failed",
		logging.Error(err),
		logging.ErrorCategory(err),
		logging.String(logging.FieldStage, stage),
		logging.String(logging.FieldErrorHint, errorHint(err)),
	)
	m.recordFailure(ctx, a, cycleID, stage, err)
	m.notifyError(ctx, a, stage, err)

	m.mu.Lock()
	m.lastErr = err
	if info := m.assetInfo[a.LocalName]; info != nil {
		info.lastError = err.Error()
		info.lastErrorAt = m.now()
	}
	m.mu.Unlock()

	return AssetResult{Asset: a, Stage: stage, Err: err}
}

func (m *Manager) recordCheck(ctx context.Context, a asset.TrackedAsset, digest string) {
	checked := m.now()
	m.mu.Lock()
	if info := m.assetInfo[a.LocalName]; info != nil {
		info.digest = digest
		info.lastChecked = checked
		info.lastError = ""
	}
	m.mu.Unlock()

	if m.history == nil {
		return
	}
	if err := m.history.RecordCheck(ctx, a, digest, checked); err != nil {
		logging.WithContext(ctx, m.logger).Debug("record check failed", logging.Error(err))
	}
}

func (m *Manager) recordFailure(ctx context.Context, a asset.TrackedAsset, cycleID, stage string, err error) {
	if m.history == nil {
		return
	}
	// The cycle context may already be cancelled; the error row still matters.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if werr := m.history.RecordError(writeCtx, a, history.CycleError{
		CycleID:    cycleID,
		Asset:      a.LocalName,
		Stage:      stage,
		Category:   services.Category(err),
		Message:    err.Error(),
		OccurredAt: m.now(),
	}); werr != nil {
		logging.WithContext(ctx, m.logger).Debug("record cycle error failed", logging.Error(werr))
	}
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, services.ErrTimeout):
		return "origin or ffmpeg exceeded its timeout; raise origin.request_timeout or conversion.encode_timeout"
	case services.IsConversionFailure(err):
		return "the texture snapshot is kept; inspect it with `assetwatch convert --info` and check conversion.ffmpeg_binary"
	case errors.Is(err, services.ErrNetwork):
		return "check origin.base_url and that the origin is reachable"
	case errors.Is(err, services.ErrFilesystem):
		return "check permissions and free space under state_dir and data_dir"
	case errors.Is(err, services.ErrUnsupportedAlgorithm):
		return "set poll.hash_algorithm to a supported digest"
	default:
		return "check logs for details"
	}
}
