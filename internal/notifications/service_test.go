package notifications_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"assetwatch/internal/asset"
	"assetwatch/internal/config"
	"assetwatch/internal/notifications"
)

type capturedRequest struct {
	path    string
	headers http.Header
	body    string
}

type recorder struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
}

func newRecorder(t *testing.T, status int) (*recorder, *httptest.Server) {
	t.Helper()
	rec := &recorder{status: status}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.requests = append(rec.requests, capturedRequest{path: r.URL.Path, headers: r.Header.Clone(), body: string(body)})
		rec.mu.Unlock()
		w.WriteHeader(rec.status)
	}))
	t.Cleanup(server.Close)
	return rec, server
}

func (r *recorder) all() []capturedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]capturedRequest(nil), r.requests...)
}

var textureChange = asset.ChangeEvent{
	Asset:          asset.TrackedAsset{RemotePath: "/materials/view.vtf", LocalName: "view.vtf"},
	DetectedAt:     time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
	CycleID:        "c1",
	SnapshotDir:    "/data/2026-10-16T09:00:00Z",
	ArchivedPath:   "/data/2026-10-16T09:00:00Z/view.vtf",
	VideoPath:      "/data/2026-10-16T09:00:00Z/view.mp4",
	PreviousDigest: "0123456789abcdef0123",
	CurrentDigest:  "fedcba9876543210fedc",
}

func baseConfig() config.Config {
	cfg := config.Default()
	cfg.Notifications.RequestTimeout = 5
	return cfg
}

func TestNewServiceReturnsNoopWhenNothingConfigured(t *testing.T) {
	cfg := baseConfig()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyChange(context.Background(), textureChange); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.TestNotification(context.Background()); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		publish        func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:        "texture change",
			publish:     func(svc notifications.Service) error { return svc.NotifyChange(context.Background(), textureChange) },
			expectTitle: "assetwatch - Texture Changed",
			expectMessage: "🔄 view.vtf changed (0123456789ab → fedcba987654)\n" +
				"Snapshot: /data/2026-10-16T09:00:00Z\n" +
				"Video: /data/2026-10-16T09:00:00Z/view.mp4",
			expectTags: "assetwatch,change,texture",
		},
		{
			name: "map change without video",
			publish: func(svc notifications.Service) error {
				ev := textureChange
				ev.Asset = asset.TrackedAsset{RemotePath: "/maps/view.bsp", LocalName: "view.bsp"}
				ev.VideoPath = ""
				ev.PreviousDigest = "aaa"
				ev.CurrentDigest = "bbb"
				return svc.NotifyChange(context.Background(), ev)
			},
			expectTitle:   "assetwatch - Map Changed",
			expectMessage: "🔄 view.bsp changed (aaa → bbb)\nSnapshot: /data/2026-10-16T09:00:00Z",
			expectTags:    "assetwatch,change,map",
		},
		{
			name: "cycle error",
			publish: func(svc notifications.Service) error {
				return svc.NotifyError(context.Background(), textureChange.Asset, "fetch", errors.New("origin returned 503"))
			},
			expectTitle:    "assetwatch - Error",
			expectMessage:  "❌ Error with view.vtf during fetch: origin returned 503",
			expectTags:     "assetwatch,error,alert",
			expectPriority: "high",
		},
		{
			name:           "test",
			publish:        func(svc notifications.Service) error { return svc.TestNotification(context.Background()) },
			expectTitle:    "assetwatch - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "assetwatch,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, server := newRecorder(t, http.StatusOK)
			cfg := baseConfig()
			cfg.Notifications.NtfyTopic = server.URL

			if err := tc.publish(notifications.NewService(&cfg)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			reqs := rec.all()
			if len(reqs) != 1 {
				t.Fatalf("expected 1 request, got %d", len(reqs))
			}
			got := reqs[0]
			if title := got.headers.Get("Title"); title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if tags := got.headers.Get("Tags"); tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, tags)
			}
			if priority := got.headers.Get("Priority"); priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, priority)
			}
		})
	}
}

func TestPublishRespectsToggles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := baseConfig()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Changes = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	if err := svc.NotifyChange(context.Background(), textureChange); err != nil {
		t.Fatalf("NotifyChange: %v", err)
	}
	if err := svc.NotifyError(context.Background(), textureChange.Asset, "fetch", errors.New("x")); err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	if err := svc.Publish(context.Background(), notifications.Event("unknown"), nil); err != nil {
		t.Fatalf("Publish unknown: %v", err)
	}
}

func TestDiscordSendsBotMessage(t *testing.T) {
	rec, server := newRecorder(t, http.StatusOK)
	cfg := baseConfig()
	cfg.Notifications.DiscordEnabled = true
	cfg.Notifications.DiscordBotToken = "secret"
	cfg.Notifications.DiscordChannelID = "12345"
	cfg.Notifications.DiscordAPIBaseURL = server.URL + "/api/v10/"

	if err := notifications.NewService(&cfg).NotifyChange(context.Background(), textureChange); err != nil {
		t.Fatalf("NotifyChange: %v", err)
	}
	reqs := rec.all()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if reqs[0].path != "/api/v10/channels/12345/messages" {
		t.Fatalf("unexpected path %q", reqs[0].path)
	}
	if auth := reqs[0].headers.Get("Authorization"); auth != "Bot secret" {
		t.Fatalf("unexpected authorization %q", auth)
	}
	var msg struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal([]byte(reqs[0].body), &msg); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !strings.HasPrefix(msg.Content, "**assetwatch - Texture Changed**\n🔄 view.vtf changed") {
		t.Fatalf("unexpected content %q", msg.Content)
	}
}

func TestDiscordRequiresEnableFlag(t *testing.T) {
	cfg := baseConfig()
	cfg.Notifications.DiscordBotToken = "secret"
	cfg.Notifications.DiscordChannelID = "12345"
	cfg.Notifications.DiscordAPIBaseURL = "http://127.0.0.1:1"
	if err := notifications.NewService(&cfg).TestNotification(context.Background()); err != nil {
		t.Fatalf("disabled discord should be a noop, got %v", err)
	}
}

func TestPagerDutyTriggersEvent(t *testing.T) {
	rec, server := newRecorder(t, http.StatusAccepted)
	cfg := baseConfig()
	cfg.Notifications.PagerDutyEnabled = true
	cfg.Notifications.PagerDutyRoutingKey = "routing"
	cfg.Notifications.PagerDutyEventsURL = server.URL + "/v2/enqueue"

	err := notifications.NewService(&cfg).NotifyError(context.Background(), textureChange.Asset, "convert", errors.New("ffmpeg exited 1"))
	if err != nil {
		t.Fatalf("NotifyError: %v", err)
	}
	reqs := rec.all()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	var event struct {
		RoutingKey  string `json:"routing_key"`
		EventAction string `json:"event_action"`
		DedupKey    string `json:"dedup_key"`
		Payload     struct {
			Summary       string            `json:"summary"`
			Severity      string            `json:"severity"`
			Source        string            `json:"source"`
			CustomDetails map[string]string `json:"custom_details"`
		} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(reqs[0].body), &event); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if event.RoutingKey != "routing" || event.EventAction != "trigger" {
		t.Fatalf("unexpected envelope: %+v", event)
	}
	if event.Payload.Severity != "error" || event.Payload.Source == "" {
		t.Fatalf("unexpected payload: %+v", event.Payload)
	}
	if event.Payload.Summary != "assetwatch - Error: ❌ Error with view.vtf during convert: ffmpeg exited 1" {
		t.Fatalf("unexpected summary %q", event.Payload.Summary)
	}
	if event.Payload.CustomDetails["stage"] != "convert" || event.DedupKey != "assetwatch/view.vtf/convert" {
		t.Fatalf("unexpected details: %+v dedup=%q", event.Payload.CustomDetails, event.DedupKey)
	}
}

func TestFanOutJoinsFailures(t *testing.T) {
	okRec, okServer := newRecorder(t, http.StatusOK)
	_, badServer := newRecorder(t, http.StatusInternalServerError)

	cfg := baseConfig()
	cfg.Notifications.NtfyTopic = okServer.URL
	cfg.Notifications.PagerDutyEnabled = true
	cfg.Notifications.PagerDutyRoutingKey = "routing"
	cfg.Notifications.PagerDutyEventsURL = badServer.URL

	err := notifications.NewService(&cfg).TestNotification(context.Background())
	if err == nil || !strings.Contains(err.Error(), "pagerduty returned 500") {
		t.Fatalf("expected pagerduty failure, got %v", err)
	}
	if len(okRec.all()) != 1 {
		t.Fatal("healthy sink should still receive the message")
	}
}
