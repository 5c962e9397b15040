package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"assetwatch/internal/asset"
	"assetwatch/internal/config"
)

// Event identifies a notification type.
type Event string

const (
	EventChangeDetected Event = "change_detected"
	EventCycleError     Event = "cycle_error"
	EventTest           Event = "test"
)

// Payload carries event fields keyed by name.
type Payload map[string]any

// Service defines the notification surface exposed to workflow components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
	NotifyChange(ctx context.Context, ev asset.ChangeEvent) error
	NotifyError(ctx context.Context, item asset.TrackedAsset, stage string, err error) error
	TestNotification(ctx context.Context) error
}

// message is the transport-neutral rendering of one event.
type message struct {
	event    Event
	title    string
	body     string
	tags     []string
	priority string
	severity string
	details  map[string]string
}

type sink interface {
	name() string
	send(ctx context.Context, msg message) error
}

// NewService builds a notification service from every configured sink.
// When none is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &http.Client{Timeout: timeout}
	n := cfg.Notifications
	userAgent := cfg.Origin.UserAgent

	var sinks []sink
	if topic := strings.TrimSpace(n.NtfyTopic); topic != "" {
		sinks = append(sinks, &ntfySink{endpoint: topic, client: client, userAgent: userAgent})
	}
	if n.DiscordEnabled && n.DiscordBotToken != "" && n.DiscordChannelID != "" {
		sinks = append(sinks, &discordSink{
			baseURL:   strings.TrimRight(n.DiscordAPIBaseURL, "/"),
			token:     n.DiscordBotToken,
			channelID: n.DiscordChannelID,
			client:    client,
			userAgent: userAgent,
		})
	}
	if n.PagerDutyEnabled && n.PagerDutyRoutingKey != "" {
		sinks = append(sinks, &pagerDutySink{
			endpoint:   n.PagerDutyEventsURL,
			routingKey: n.PagerDutyRoutingKey,
			client:     client,
			userAgent:  userAgent,
			source:     hostname(),
		})
	}
	if len(sinks) == 0 {
		return noopService{}
	}
	return &notifier{sinks: sinks, notifyChanges: n.Changes, notifyErrors: n.Errors}
}

type notifier struct {
	sinks         []sink
	notifyChanges bool
	notifyErrors  bool
}

func (n *notifier) Publish(ctx context.Context, event Event, payload Payload) error {
	switch event {
	case EventChangeDetected:
		if !n.notifyChanges {
			return nil
		}
	case EventCycleError:
		if !n.notifyErrors {
			return nil
		}
	case EventTest:
	default:
		return nil
	}

	msg := format(event, payload)
	var errs []error
	for _, s := range n.sinks {
		if err := s.send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name(), err))
		}
	}
	return errors.Join(errs...)
}

func (n *notifier) NotifyChange(ctx context.Context, ev asset.ChangeEvent) error {
	return n.Publish(ctx, EventChangeDetected, ChangePayload(ev))
}

func (n *notifier) NotifyError(ctx context.Context, item asset.TrackedAsset, stage string, err error) error {
	return n.Publish(ctx, EventCycleError, ErrorPayload(item, stage, err))
}

func (n *notifier) TestNotification(ctx context.Context) error {
	return n.Publish(ctx, EventTest, Payload{})
}

// ChangePayload flattens ev into a Payload.
func ChangePayload(ev asset.ChangeEvent) Payload {
	return Payload{
		"asset":           ev.Asset.LocalName,
		"remotePath":      ev.Asset.RemotePath,
		"kind":            ev.Asset.Kind(),
		"cycleID":         ev.CycleID,
		"detectedAt":      ev.DetectedAt.UTC().Format(time.RFC3339),
		"snapshotDir":     ev.SnapshotDir,
		"archivedPath":    ev.ArchivedPath,
		"videoPath":       ev.VideoPath,
		"previousDigest":  ev.PreviousDigest,
		"currentDigest":   ev.CurrentDigest,
		"conversionError": ev.ConversionError,
	}
}

// ErrorPayload describes a failed asset cycle.
func ErrorPayload(item asset.TrackedAsset, stage string, err error) Payload {
	text := "unknown"
	if err != nil {
		text = strings.TrimSpace(err.Error())
	}
	return Payload{
		"asset":      item.LocalName,
		"remotePath": item.RemotePath,
		"stage":      stage,
		"error":      text,
	}
}

var titleCaser = cases.Title(language.English)

func format(event Event, p Payload) message {
	switch event {
	case EventChangeDetected:
		name := p.str("asset")
		kind := p.str("kind")
		if kind == "" {
			kind = "asset"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "🔄 %s changed (%s → %s)", name, shortDigest(p.str("previousDigest")), shortDigest(p.str("currentDigest")))
		if dir := p.str("snapshotDir"); dir != "" {
			fmt.Fprintf(&b, "\nSnapshot: %s", dir)
		}
		if video := p.str("videoPath"); video != "" {
			fmt.Fprintf(&b, "\nVideo: %s", video)
		}
		severity := "info"
		if convErr := p.str("conversionError"); convErr != "" {
			fmt.Fprintf(&b, "\nConversion failed: %s", convErr)
			severity = "warning"
		}
		return message{
			event:    event,
			title:    fmt.Sprintf("assetwatch - %s Changed", titleCaser.String(kind)),
			body:     b.String(),
			tags:     []string{"assetwatch", "change", kind},
			severity: severity,
			details:  p.fields(),
		}
	case EventCycleError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if name := p.str("asset"); name != "" {
			b.WriteString(" with ")
			b.WriteString(name)
		}
		if stage := p.str("stage"); stage != "" {
			b.WriteString(" during ")
			b.WriteString(stage)
		}
		b.WriteString(": ")
		if text := p.str("error"); text != "" {
			b.WriteString(text)
		} else {
			b.WriteString("unknown")
		}
		return message{
			event:    event,
			title:    "assetwatch - Error",
			body:     b.String(),
			tags:     []string{"assetwatch", "error", "alert"},
			priority: "high",
			severity: "error",
			details:  p.fields(),
		}
	default:
		return message{
			event:    EventTest,
			title:    "assetwatch - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"assetwatch", "test"},
			priority: "low",
			severity: "info",
		}
	}
}

func (p Payload) str(key string) string {
	if p == nil {
		return ""
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (p Payload) fields() map[string]string {
	out := make(map[string]string, len(p))
	for key := range p {
		if v := p.str(key); v != "" {
			out[key] = v
		}
	}
	return out
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	if d == "" {
		return "none"
	}
	return d
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error                        { return nil }
func (noopService) NotifyChange(context.Context, asset.ChangeEvent) error                { return nil }
func (noopService) NotifyError(context.Context, asset.TrackedAsset, string, error) error { return nil }
func (noopService) TestNotification(context.Context) error                               { return nil }
