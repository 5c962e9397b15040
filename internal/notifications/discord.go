package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Discord rejects message content longer than this.
const discordContentLimit = 2000

type discordSink struct {
	baseURL   string
	token     string
	channelID string
	client    *http.Client
	userAgent string
}

type discordMessage struct {
	Content string `json:"content"`
}

func (d *discordSink) name() string { return "discord" }

func (d *discordSink) send(ctx context.Context, data message) error {
	content := data.body
	if data.title != "" {
		content = "**" + data.title + "**\n" + content
	}
	if runes := []rune(content); len(runes) > discordContentLimit {
		content = string(runes[:discordContentLimit-1]) + "…"
	}
	body, err := json.Marshal(discordMessage{Content: content})
	if err != nil {
		return fmt.Errorf("encode discord message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/channels/%s/messages", d.baseURL, d.channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+d.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("discord returned %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
