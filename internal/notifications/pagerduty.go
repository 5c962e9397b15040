package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type pagerDutySink struct {
	endpoint   string
	routingKey string
	client     *http.Client
	userAgent  string
	source     string
}

type pagerDutyEvent struct {
	RoutingKey  string           `json:"routing_key"`
	EventAction string           `json:"event_action"`
	DedupKey    string           `json:"dedup_key,omitempty"`
	Payload     pagerDutyPayload `json:"payload"`
}

type pagerDutyPayload struct {
	Summary       string            `json:"summary"`
	Source        string            `json:"source"`
	Severity      string            `json:"severity"`
	Timestamp     string            `json:"timestamp"`
	Component     string            `json:"component,omitempty"`
	Class         string            `json:"class,omitempty"`
	CustomDetails map[string]string `json:"custom_details,omitempty"`
}

func (p *pagerDutySink) name() string { return "pagerduty" }

func (p *pagerDutySink) send(ctx context.Context, data message) error {
	summary := data.title
	if first, _, _ := strings.Cut(data.body, "\n"); first != "" {
		summary = data.title + ": " + first
	}
	if len(summary) > 1024 {
		summary = summary[:1024]
	}
	severity := data.severity
	if severity == "" {
		severity = "info"
	}

	event := pagerDutyEvent{
		RoutingKey:  p.routingKey,
		EventAction: "trigger",
		Payload: pagerDutyPayload{
			Summary:       summary,
			Source:        p.source,
			Severity:      severity,
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
			Component:     data.details["asset"],
			Class:         string(data.event),
			CustomDetails: data.details,
		},
	}
	if data.event == EventCycleError && data.details["asset"] != "" {
		event.DedupKey = "assetwatch/" + data.details["asset"] + "/" + data.details["stage"]
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode pagerduty event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build pagerduty request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send pagerduty event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("pagerduty returned %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "assetwatch"
	}
	return name
}
