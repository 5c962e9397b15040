package config

import (
	"fmt"
	"os"
	"path"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeOrigin()
	c.normalizeAssets()
	c.normalizePoll()
	c.normalizeConversion()
	c.normalizeNotifications()
	c.normalizeLogging()
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	// An empty work_dir keeps frame scratch space inside the snapshot directory.
	if c.Paths.WorkDir, err = expandPath(strings.TrimSpace(c.Paths.WorkDir)); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeOrigin() {
	c.Origin.BaseURL = strings.TrimRight(strings.TrimSpace(c.Origin.BaseURL), "/")
	if c.Origin.BaseURL == "" {
		c.Origin.BaseURL = defaultOriginBaseURL
	}
	c.Origin.UserAgent = strings.TrimSpace(c.Origin.UserAgent)
	if c.Origin.UserAgent == "" {
		c.Origin.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeAssets() {
	for i := range c.Assets {
		remote := strings.TrimSpace(c.Assets[i].RemotePath)
		if remote != "" && !strings.HasPrefix(remote, "/") {
			remote = "/" + remote
		}
		c.Assets[i].RemotePath = remote
		c.Assets[i].LocalName = strings.TrimSpace(c.Assets[i].LocalName)
		if c.Assets[i].LocalName == "" && remote != "" {
			c.Assets[i].LocalName = path.Base(remote)
		}
	}
}

func (c *Config) normalizePoll() {
	c.Poll.HashAlgorithm = strings.ToLower(strings.TrimSpace(c.Poll.HashAlgorithm))
	if c.Poll.HashAlgorithm == "" {
		c.Poll.HashAlgorithm = defaultHashAlgorithm
	}
	c.Poll.Reprime = strings.ToLower(strings.TrimSpace(c.Poll.Reprime))
	if c.Poll.Reprime == "" {
		c.Poll.Reprime = defaultReprime
	}
}

func (c *Config) normalizeConversion() {
	c.Conversion.VideoName = strings.TrimSpace(c.Conversion.VideoName)
	if c.Conversion.VideoName == "" {
		c.Conversion.VideoName = defaultVideoName
	}
	c.Conversion.FFmpegBinary = strings.TrimSpace(c.Conversion.FFmpegBinary)
	if c.Conversion.FFmpegBinary == "" {
		c.Conversion.FFmpegBinary = defaultFFmpegBinary
	}
	c.Conversion.FFprobeBinary = strings.TrimSpace(c.Conversion.FFprobeBinary)
	if c.Conversion.FFprobeBinary == "" {
		c.Conversion.FFprobeBinary = defaultFFprobeBinary
	}
	c.Conversion.Preset = strings.ToLower(strings.TrimSpace(c.Conversion.Preset))
	if c.Conversion.Preset == "" {
		c.Conversion.Preset = defaultPreset
	}
	if c.Conversion.Workers <= 0 {
		c.Conversion.Workers = defaultConversionWorkers
	}
}

func (c *Config) normalizeNotifications() {
	n := &c.Notifications
	n.NtfyTopic = strings.TrimSpace(n.NtfyTopic)
	if n.NtfyTopic == "" {
		if value, ok := os.LookupEnv("NTFY_TOPIC"); ok {
			n.NtfyTopic = strings.TrimSpace(value)
		}
	}

	n.DiscordBotToken = strings.TrimSpace(n.DiscordBotToken)
	if n.DiscordBotToken == "" {
		if value, ok := os.LookupEnv("DISCORD_BOT_TOKEN"); ok {
			n.DiscordBotToken = strings.TrimSpace(value)
		}
	}
	n.DiscordGuildID = strings.TrimSpace(n.DiscordGuildID)
	if n.DiscordGuildID == "" {
		if value, ok := os.LookupEnv("DISCORD_GUILD_ID"); ok {
			n.DiscordGuildID = strings.TrimSpace(value)
		}
	}
	n.DiscordChannelID = strings.TrimSpace(n.DiscordChannelID)
	if n.DiscordChannelID == "" {
		if value, ok := os.LookupEnv("DISCORD_ALERT_CHANNEL"); ok {
			n.DiscordChannelID = strings.TrimSpace(value)
		}
	}
	if !n.DiscordEnabled && envBool("DISCORD_ENABLE") {
		n.DiscordEnabled = true
	}
	n.DiscordAPIBaseURL = strings.TrimRight(strings.TrimSpace(n.DiscordAPIBaseURL), "/")
	if n.DiscordAPIBaseURL == "" {
		n.DiscordAPIBaseURL = defaultDiscordAPIBaseURL
	}

	n.PagerDutyRoutingKey = strings.TrimSpace(n.PagerDutyRoutingKey)
	if n.PagerDutyRoutingKey == "" {
		if value, ok := os.LookupEnv("PAGERDUTY_TOKEN"); ok {
			n.PagerDutyRoutingKey = strings.TrimSpace(value)
		}
	}
	if !n.PagerDutyEnabled && envBool("PAGERDUTY_ENABLE") {
		n.PagerDutyEnabled = true
	}
	n.PagerDutyEventsURL = strings.TrimSpace(n.PagerDutyEventsURL)
	if n.PagerDutyEventsURL == "" {
		n.PagerDutyEventsURL = defaultPagerDutyEventsURL
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func envBool(key string) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
