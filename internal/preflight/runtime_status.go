package preflight

import (
	"strings"

	"assetwatch/internal/config"
)

// CheckNotificationsFromConfig summarizes which notification sinks the
// config enables. It performs no network calls; use the test-notify command
// for delivery checks.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	n := cfg.Notifications
	var sinks, problems []string
	if strings.TrimSpace(n.NtfyTopic) != "" {
		sinks = append(sinks, "ntfy")
	}
	if n.DiscordEnabled {
		switch {
		case strings.TrimSpace(n.DiscordBotToken) == "":
			problems = append(problems, "discord missing bot token")
		case strings.TrimSpace(n.DiscordChannelID) == "":
			problems = append(problems, "discord missing channel")
		default:
			sinks = append(sinks, "discord")
		}
	}
	if n.PagerDutyEnabled {
		if strings.TrimSpace(n.PagerDutyRoutingKey) == "" {
			problems = append(problems, "pagerduty missing routing key")
		} else {
			sinks = append(sinks, "pagerduty")
		}
	}

	if len(problems) > 0 {
		return Result{Name: name, Detail: strings.Join(problems, "; ")}
	}
	if len(sinks) == 0 {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(sinks, ", ")}
}
