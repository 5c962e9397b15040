package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"assetwatch/internal/asset"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	DataDir  string `toml:"data_dir"`
	WorkDir  string `toml:"work_dir"`
	LogDir   string `toml:"log_dir"`
}

// Origin describes the remote file server the assets are fetched from.
type Origin struct {
	BaseURL        string `toml:"base_url"`
	RequestTimeout int    `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// Asset is one tracked remote file as it appears in the config file.
type Asset struct {
	RemotePath string `toml:"remote_path"`
	LocalName  string `toml:"local_name"`
}

// Poll contains the polling loop timing and comparison settings.
type Poll struct {
	Interval      int    `toml:"interval"`
	HashAlgorithm string `toml:"hash_algorithm"`
	// Reprime is "copy" (promote the archived bytes locally) or "refetch"
	// (download the reference again from the origin).
	Reprime string `toml:"reprime"`
}

// Conversion contains the texture to video pipeline settings.
type Conversion struct {
	Enabled       bool   `toml:"enabled"`
	FPS           int    `toml:"fps"`
	VideoName     string `toml:"video_name"`
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	Preset        string `toml:"preset"`
	CRF           int    `toml:"crf"`
	EncodeTimeout int    `toml:"encode_timeout"`
	Workers       int    `toml:"workers"`
	KeepFrames    bool   `toml:"keep_frames"`
	VerifyOutput  bool   `toml:"verify_output"`
}

// Notifications contains configuration for change and error alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`

	DiscordEnabled    bool   `toml:"discord_enabled"`
	DiscordBotToken   string `toml:"discord_bot_token"`
	DiscordGuildID    string `toml:"discord_guild_id"`
	DiscordChannelID  string `toml:"discord_channel_id"`
	DiscordAPIBaseURL string `toml:"discord_api_base_url"`

	PagerDutyEnabled    bool   `toml:"pagerduty_enabled"`
	PagerDutyRoutingKey string `toml:"pagerduty_routing_key"`
	PagerDutyEventsURL  string `toml:"pagerduty_events_url"`

	Changes bool `toml:"changes"`
	Errors  bool `toml:"errors"`
}

// API contains the daemon status API settings.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for assetwatch.
//
// Configuration sections by subsystem:
//   - Paths: slot state, snapshot archive, scratch and log directories
//   - Origin: FastDL base URL and HTTP client settings
//   - Assets: the tracked remote files
//   - Poll: interval, digest algorithm and reference re-priming
//   - Conversion: VTF to MP4 rendering via ffmpeg
//   - Notifications: ntfy, Discord and PagerDuty alerts
//   - API: status API bind address
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Origin        Origin        `toml:"origin"`
	Assets        []Asset       `toml:"assets"`
	Poll          Poll          `toml:"poll"`
	Conversion    Conversion    `toml:"conversion"`
	Notifications Notifications `toml:"notifications"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		// An [[assets]] table in the file replaces the default set entirely.
		cfg.Assets = nil
		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		if len(cfg.Assets) == 0 {
			cfg.Assets = defaultAssets()
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("assetwatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Paths.StateDir,
		c.ReferenceDir(),
		c.LatestDir(),
		c.Paths.DataDir,
		c.Paths.LogDir,
	}
	if c.Paths.WorkDir != "" {
		dirs = append(dirs, c.Paths.WorkDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ReferenceDir returns the directory holding the last known-good copy of each asset.
func (c *Config) ReferenceDir() string {
	return filepath.Join(c.Paths.StateDir, string(asset.SlotReference))
}

// LatestDir returns the directory holding the most recent fetch of each asset.
func (c *Config) LatestDir() string {
	return filepath.Join(c.Paths.StateDir, string(asset.SlotLatest))
}

// HistoryPath returns the sqlite database used for the change history.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the daemon single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "assetwatch.lock")
}

// TrackedAssets converts the configured asset list into a validated set.
func (c *Config) TrackedAssets() (asset.Set, error) {
	items := make([]asset.TrackedAsset, 0, len(c.Assets))
	for _, a := range c.Assets {
		items = append(items, asset.TrackedAsset{RemotePath: a.RemotePath, LocalName: a.LocalName})
	}
	return asset.NewSet(items)
}

// VideoNames maps each tracked texture's local name to the video written
// beside it in a snapshot. A lone texture uses conversion.video_name; with
// several, each video is named after its texture ("<stem>.mp4").
func (c *Config) VideoNames() (map[string]string, error) {
	set, err := c.TrackedAssets()
	if err != nil {
		return nil, err
	}
	return VideoNames(set.All(), c.Conversion.VideoName), nil
}

// VideoNames derives per-texture video file names for assets.
func VideoNames(assets []asset.TrackedAsset, videoName string) map[string]string {
	var textures []asset.TrackedAsset
	for _, a := range assets {
		if a.IsTexture() {
			textures = append(textures, a)
		}
	}
	names := make(map[string]string, len(textures))
	if len(textures) == 1 {
		names[textures[0].LocalName] = videoName
		return names
	}
	ext := filepath.Ext(videoName)
	if ext == "" {
		ext = ".mp4"
	}
	for _, a := range textures {
		names[a.LocalName] = strings.TrimSuffix(a.LocalName, filepath.Ext(a.LocalName)) + ext
	}
	return names
}

// PollInterval returns the poll ticker period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poll.Interval) * time.Second
}

// OriginTimeout returns the per-request fetch timeout.
func (c *Config) OriginTimeout() time.Duration {
	return time.Duration(c.Origin.RequestTimeout) * time.Second
}

// EncodeTimeout returns the ceiling applied to every ffmpeg and ffprobe run.
func (c *Config) EncodeTimeout() time.Duration {
	return time.Duration(c.Conversion.EncodeTimeout) * time.Second
}

// NotifyTimeout returns the per-notification delivery timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

// FFmpegBinary returns the ffmpeg executable used for video assembly.
func (c *Config) FFmpegBinary() string {
	if c.Conversion.FFmpegBinary == "" {
		return defaultFFmpegBinary
	}
	return c.Conversion.FFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for output verification.
func (c *Config) FFprobeBinary() string {
	if c.Conversion.FFprobeBinary == "" {
		return defaultFFprobeBinary
	}
	return c.Conversion.FFprobeBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
