package workflow

import (
	"context"
	"errors"

	"assetwatch/internal/asset"
	"assetwatch/internal/logging"
)

// notifyChange delivers ev in the background. Delivery never holds up the
// asset's next cycle; Stop waits for it.
func (m *Manager) notifyChange(ctx context.Context, ev asset.ChangeEvent) {
	if m.notifier == nil {
		return
	}
	m.deliver(ctx, "change notification failed", func(nctx context.Context) error {
		return m.notifier.NotifyChange(nctx, ev)
	})
}

func (m *Manager) notifyError(ctx context.Context, a asset.TrackedAsset, stage string, cause error) {
	if m.notifier == nil || cause == nil {
		return
	}
	m.deliver(ctx, "error notification failed", func(nctx context.Context) error {
		return m.notifier.NotifyError(nctx, a, stage, cause)
	})
}

func (m *Manager) deliver(ctx context.Context, failure string, send func(context.Context) error) {
	logger := logging.WithContext(ctx, m.logger)
	// Shutdown must not drop a notification that was already due.
	base := context.WithoutCancel(ctx)
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		nctx, cancel := context.WithTimeout(base, m.notifyTimeout)
		defer cancel()
		if err := send(nctx); err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Debug("daemon shutting down, could not send notification")
			} else {
				logger.Debug(failure, logging.Error(err))
			}
		}
	}()
}
