package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"assetwatch/internal/hasher"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOrigin(); err != nil {
		return err
	}
	if err := c.validateAssets(); err != nil {
		return err
	}
	if err := c.validatePoll(); err != nil {
		return err
	}
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOrigin() error {
	parsed, err := url.Parse(c.Origin.BaseURL)
	if err != nil {
		return fmt.Errorf("origin.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("origin.base_url must use http or https, got %q", c.Origin.BaseURL)
	}
	if parsed.Host == "" {
		return errors.New("origin.base_url must include a host")
	}
	return ensurePositiveMap(map[string]int{
		"origin.request_timeout": c.Origin.RequestTimeout,
	})
}

func (c *Config) validateAssets() error {
	if len(c.Assets) == 0 {
		return errors.New("at least one [[assets]] entry is required")
	}
	if _, err := c.TrackedAssets(); err != nil {
		return fmt.Errorf("assets: %w", err)
	}
	return nil
}

func (c *Config) validatePoll() error {
	if c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be positive (seconds)")
	}
	if !hasher.Supported(c.Poll.HashAlgorithm) {
		return fmt.Errorf("poll.hash_algorithm %q is not supported (use one of: %s)",
			c.Poll.HashAlgorithm, strings.Join(hasher.Algorithms(), ", "))
	}
	switch c.Poll.Reprime {
	case ReprimeCopy, ReprimeRefetch:
	default:
		return fmt.Errorf("poll.reprime must be %q or %q, got %q", ReprimeCopy, ReprimeRefetch, c.Poll.Reprime)
	}
	return nil
}

func (c *Config) validateConversion() error {
	if !c.Conversion.Enabled {
		return nil
	}
	if c.Conversion.FPS <= 0 || c.Conversion.FPS > maxFPS {
		return fmt.Errorf("conversion.fps must be between 1 and %d", maxFPS)
	}
	if c.Conversion.CRF < 0 || c.Conversion.CRF > 51 {
		return errors.New("conversion.crf must be between 0 and 51")
	}
	if c.Conversion.Workers > maxConversionWorkers {
		return fmt.Errorf("conversion.workers must be <= %d", maxConversionWorkers)
	}
	if strings.ContainsAny(c.Conversion.VideoName, `/\`) || c.Conversion.VideoName == "." || c.Conversion.VideoName == ".." {
		return errors.New("conversion.video_name must be a bare file name")
	}
	set, err := c.TrackedAssets()
	if err != nil {
		return fmt.Errorf("assets: %w", err)
	}
	videos := VideoNames(set.All(), c.Conversion.VideoName)
	owners := make(map[string]string, len(videos))
	for texture, video := range videos {
		if other, dup := owners[video]; dup {
			return fmt.Errorf("textures %q and %q would both render to %q", other, texture, video)
		}
		owners[video] = texture
		if _, taken := set.Lookup(video); taken {
			return fmt.Errorf("video %q for texture %q collides with a tracked asset", video, texture)
		}
	}
	return ensurePositiveMap(map[string]int{
		"conversion.encode_timeout": c.Conversion.EncodeTimeout,
	})
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	if n.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if n.DiscordEnabled {
		if n.DiscordBotToken == "" {
			return errors.New("notifications.discord_bot_token must be set when discord is enabled (or set DISCORD_BOT_TOKEN)")
		}
		if n.DiscordChannelID == "" {
			return errors.New("notifications.discord_channel_id must be set when discord is enabled (or set DISCORD_ALERT_CHANNEL)")
		}
	}
	if n.PagerDutyEnabled && n.PagerDutyRoutingKey == "" {
		return errors.New("notifications.pagerduty_routing_key must be set when pagerduty is enabled (or set PAGERDUTY_TOKEN)")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
