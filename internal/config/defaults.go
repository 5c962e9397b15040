package config

const (
	defaultConfigPath         = "~/.config/assetwatch/config.toml"
	defaultStateDir           = "~/.local/share/assetwatch/state"
	defaultDataDir            = "~/.local/share/assetwatch/snapshots"
	defaultLogDir             = "~/.local/share/assetwatch/logs"
	defaultLogRetentionDays   = 60
	defaultOriginBaseURL      = "https://wavespray.dathost.net/fastdl/teamfortress2/679d9656b8573d37aa848d60"
	defaultOriginTimeout      = 30
	defaultUserAgent          = "assetwatch/dev"
	defaultPollInterval       = 10
	defaultHashAlgorithm      = "sha256"
	defaultReprime            = ReprimeCopy
	defaultFPS                = 30
	defaultVideoName          = "view.mp4"
	defaultFFmpegBinary       = "ffmpeg"
	defaultFFprobeBinary      = "ffprobe"
	defaultPreset             = "fast"
	defaultCRF                = 23
	defaultEncodeTimeout      = 300
	defaultConversionWorkers  = 4
	defaultNotifyTimeout      = 10
	defaultDiscordAPIBaseURL  = "https://discord.com/api/v10"
	defaultPagerDutyEventsURL = "https://events.pagerduty.com/v2/enqueue"
	defaultAPIBind            = "127.0.0.1:7488"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	maxConversionWorkers      = 64
	maxFPS                    = 240
)

// Re-prime modes for the reference slot after a change is archived.
const (
	ReprimeCopy    = "copy"
	ReprimeRefetch = "refetch"
)

func defaultAssets() []Asset {
	return []Asset{
		{RemotePath: "/maps/view.bsp", LocalName: "view.bsp"},
		{RemotePath: "/materials/view.vtf", LocalName: "view.vtf"},
		{RemotePath: "/maps/ask.bsp", LocalName: "ask.bsp"},
		{RemotePath: "/maps/askask.bsp", LocalName: "askask.bsp"},
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
		},
		Origin: Origin{
			BaseURL:        defaultOriginBaseURL,
			RequestTimeout: defaultOriginTimeout,
			UserAgent:      defaultUserAgent,
		},
		Assets: defaultAssets(),
		Poll: Poll{
			Interval:      defaultPollInterval,
			HashAlgorithm: defaultHashAlgorithm,
			Reprime:       defaultReprime,
		},
		Conversion: Conversion{
			Enabled:       true,
			FPS:           defaultFPS,
			VideoName:     defaultVideoName,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			Preset:        defaultPreset,
			CRF:           defaultCRF,
			EncodeTimeout: defaultEncodeTimeout,
			Workers:       defaultConversionWorkers,
			VerifyOutput:  true,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyTimeout,
			DiscordAPIBaseURL:  defaultDiscordAPIBaseURL,
			PagerDutyEventsURL: defaultPagerDutyEventsURL,
			Changes:            true,
			Errors:             true,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
