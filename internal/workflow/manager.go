package workflow

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"assetwatch/internal/archive"
	"assetwatch/internal/asset"
	"assetwatch/internal/config"
	"assetwatch/internal/convert"
	"assetwatch/internal/detect"
	"assetwatch/internal/fetcher"
	"assetwatch/internal/history"
	"assetwatch/internal/logging"
	"assetwatch/internal/notifications"
	"assetwatch/internal/slots"
	"assetwatch/internal/video"
)

// Fetcher downloads an asset into one of its slots.
type Fetcher interface {
	Fetch(ctx context.Context, a asset.TrackedAsset, slot asset.Slot) (fetcher.Result, error)
}

// Archiver persists a changed asset and rotates its Reference slot.
type Archiver interface {
	Archive(ctx context.Context, a asset.TrackedAsset, ts time.Time) (archive.Result, error)
}

// Manager coordinates priming and the periodic poll cycles.
type Manager struct {
	cfg           *config.Config
	assets        []asset.TrackedAsset
	store         *slots.Store
	fetcher       Fetcher
	detector      *detect.Detector
	archiver      Archiver
	history       *history.Store
	notifier      notifications.Service
	logger        *slog.Logger
	interval      time.Duration
	notifyTimeout time.Duration
	now           func() time.Time
	newCycleID    func() string

	tokens map[string]*sync.Mutex

	mu        sync.RWMutex
	running   bool
	phase     Phase
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	inflight  sync.WaitGroup
	lastErr   error
	lastCycle CycleSummary
	assetInfo map[string]*assetStatus
}

// Option customizes a Manager.
type Option func(*managerOptions)

type managerOptions struct {
	notifier   notifications.Service
	httpClient *http.Client
	assembler  *video.Assembler
	fetcher    Fetcher
	archiver   Archiver
	now        func() time.Time
	newCycleID func() string
}

// WithNotifier replaces the notifier built from configuration.
func WithNotifier(n notifications.Service) Option {
	return func(o *managerOptions) { o.notifier = n }
}

// WithHTTPClient overrides the HTTP client used for origin requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *managerOptions) { o.httpClient = client }
}

// WithAssembler overrides the video assembler used by the conversion chain.
func WithAssembler(a *video.Assembler) Option {
	return func(o *managerOptions) { o.assembler = a }
}

// WithFetcher replaces the origin fetcher.
func WithFetcher(f Fetcher) Option {
	return func(o *managerOptions) { o.fetcher = f }
}

// WithArchiver replaces the snapshot archiver.
func WithArchiver(a Archiver) Option {
	return func(o *managerOptions) { o.archiver = a }
}

// WithClock overrides the time source used for snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *managerOptions) { o.now = now }
}

// WithCycleIDs overrides cycle ID generation.
func WithCycleIDs(next func() string) Option {
	return func(o *managerOptions) { o.newCycleID = next }
}

// NewManager wires the fetch, detect, archive and conversion components from
// cfg. hist may be nil, in which case nothing is recorded.
func NewManager(cfg *config.Config, hist *history.Store, logger *slog.Logger, opts ...Option) (*Manager, error) {
	set, err := cfg.TrackedAssets()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	options := managerOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	store := slots.NewStore(cfg.Paths.StateDir)
	if err := store.Ensure(); err != nil {
		return nil, err
	}

	f := options.fetcher
	if f == nil {
		var fetchOpts []fetcher.Option
		if options.httpClient != nil {
			fetchOpts = append(fetchOpts, fetcher.WithHTTPClient(options.httpClient))
		}
		f = fetcher.New(cfg, store, logger, fetchOpts...)
	}

	arch := options.archiver
	if arch == nil {
		var converter archive.TextureConverter
		if cfg.Conversion.Enabled {
			var convOpts []convert.Option
			if options.assembler != nil {
				convOpts = append(convOpts, convert.WithAssembler(options.assembler))
			}
			converter = convert.New(cfg, logger, convOpts...)
		}
		arch = archive.New(cfg, store, f, converter, logger)
	}

	notifier := options.notifier
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	now := options.now
	if now == nil {
		now = time.Now
	}
	newID := options.newCycleID
	if newID == nil {
		newID = func() string { return uuid.NewString() }
	}

	notifyTimeout := cfg.NotifyTimeout()
	if notifyTimeout <= 0 {
		notifyTimeout = 10 * time.Second
	}

	assets := set.All()
	m := &Manager{
		cfg:           cfg,
		assets:        assets,
		store:         store,
		fetcher:       f,
		detector:      detect.New(store, cfg.Poll.HashAlgorithm),
		archiver:      arch,
		history:       hist,
		notifier:      notifier,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		interval:      cfg.PollInterval(),
		notifyTimeout: notifyTimeout,
		now:           now,
		newCycleID:    newID,
		tokens:        make(map[string]*sync.Mutex, len(assets)),
		phase:         PhaseIdle,
		assetInfo:     make(map[string]*assetStatus, len(assets)),
	}
	for _, a := range assets {
		m.tokens[a.LocalName] = &sync.Mutex{}
		m.assetInfo[a.LocalName] = &assetStatus{asset: a}
	}
	return m, nil
}

// Assets returns the tracked assets in configuration order.
func (m *Manager) Assets() []asset.TrackedAsset {
	out := make([]asset.TrackedAsset, len(m.assets))
	copy(out, m.assets)
	return out
}

// Slots exposes the slot store for status reporting.
func (m *Manager) Slots() *slots.Store {
	return m.store
}
