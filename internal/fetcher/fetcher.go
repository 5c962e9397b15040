package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"assetwatch/internal/asset"
	"assetwatch/internal/config"
	"assetwatch/internal/hasher"
	"assetwatch/internal/logging"
	"assetwatch/internal/services"
	"assetwatch/internal/slots"
)

// Result describes one completed download.
type Result struct {
	Asset    asset.TrackedAsset
	Slot     asset.Slot
	Path     string
	Bytes    int64
	Digest   hasher.Digest
	Duration time.Duration
}

// Fetcher downloads tracked assets from the origin into local slots.
type Fetcher struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	algorithm string
	client    *http.Client
	store     *slots.Store
	logger    *slog.Logger
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client used for origin requests.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// New constructs a Fetcher from configuration.
func New(cfg *config.Config, store *slots.Store, logger *slog.Logger, opts ...Option) *Fetcher {
	f := &Fetcher{
		baseURL:   strings.TrimRight(cfg.Origin.BaseURL, "/"),
		userAgent: cfg.Origin.UserAgent,
		timeout:   cfg.OriginTimeout(),
		algorithm: cfg.Poll.HashAlgorithm,
		client:    &http.Client{},
		store:     store,
		logger:    logging.NewComponentLogger(logger, "fetcher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the origin URL for a.
func (f *Fetcher) URL(a asset.TrackedAsset) string {
	return f.baseURL + a.RemotePath
}

// Fetch downloads a into slot. The previous slot content is replaced only when
// the whole body arrived; any failure leaves it untouched.
func (f *Fetcher) Fetch(ctx context.Context, a asset.TrackedAsset, slot asset.Slot) (Result, error) {
	started := time.Now()
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	url := f.URL(a)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, services.Wrap(services.ErrNetwork, "fetcher", "build request", url, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, f.classify(ctx, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		detail := fmt.Sprintf("%s returned %d", url, resp.StatusCode)
		if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
			detail += ": " + text
		}
		return Result{}, services.Wrap(services.ErrNetwork, "fetcher", "get", detail, nil)
	}

	h, err := hasher.New(f.algorithm)
	if err != nil {
		return Result{}, err
	}
	body := &trackingReader{r: io.TeeReader(resp.Body, h), expected: resp.ContentLength}
	written, err := f.store.Publish(a, slot, body)
	if err != nil {
		if body.err != nil {
			return Result{}, f.classify(ctx, url, body.err)
		}
		return Result{}, services.Wrap(services.ErrFilesystem, "fetcher", "publish", f.store.Path(a, slot), err)
	}
	result := Result{
		Asset:    a,
		Slot:     slot,
		Path:     f.store.Path(a, slot),
		Bytes:    written,
		Digest:   hasher.Sum(h),
		Duration: time.Since(started),
	}
	f.logger.Debug("asset fetched",
		logging.String(logging.FieldAsset, a.LocalName),
		logging.String("slot", string(slot)),
		logging.Size("size", written),
		logging.String("digest", result.Digest.Short()),
		logging.Duration("duration", result.Duration),
	)
	return result, nil
}

func (f *Fetcher) classify(ctx context.Context, url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.WrapTimeout(services.ErrNetwork, "fetcher", "get "+url, err)
	}
	return services.Wrap(services.ErrNetwork, "fetcher", "get", url, err)
}

// trackingReader remembers the last read error so transport failures
// surfacing mid-body are not misreported as filesystem errors. A body shorter
// than the advertised Content-Length fails before the slot is replaced.
type trackingReader struct {
	r        io.Reader
	expected int64
	read     int64
	err      error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.read += int64(n)
	if err == io.EOF && t.expected >= 0 && t.read != t.expected {
		err = fmt.Errorf("short body %d of %d bytes: %w", t.read, t.expected, io.ErrUnexpectedEOF)
	}
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}
