package config

const (
	defaultStagingDir        = "~/.local/share/reelforge/staging"
	defaultOutputDir         = "~/reels"
	defaultLogDir            = "~/.local/share/reelforge/logs"
	defaultAPIBind           = "127.0.0.1:7680"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 60
	defaultPollInterval      = 2
	defaultHeartbeatInterval = 10
	defaultHeartbeatTimeout  = 60
	defaultMaxAttempts       = 3
	defaultRetryBaseSeconds  = 5
	defaultRetryCapSeconds   = 300
	defaultLLMBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel          = "openai/gpt-4o-mini"
	defaultLLMReferer        = "https://github.com/reelforge/reelforge"
	defaultLLMTitle          = "Reelforge Narration"
	defaultLLMTimeout        = 60
	defaultTargetSeconds     = 30
	defaultTolerance         = 0.15
	defaultWordsPerMinute    = 150
	defaultTTSCommand        = "espeak-ng -v {voice} -w {output} -f {text_file}"
	defaultTTSVoice          = "en-us"
	defaultTTSTimeout        = 120
	defaultFootageBaseURL    = "https://api.pexels.com"
	defaultFootagePerPage    = 10
	defaultMinClipSeconds    = 3
	defaultMaxClips          = 6
	defaultKeywordLimit      = 5
	defaultDownloadWorkers   = 3
	defaultRenderWidth       = 1080
	defaultRenderHeight      = 1920
	defaultRenderFPS         = 30
	defaultSegmentMinSecs    = 2
	defaultSegmentMaxSecs    = 5
	defaultAssemblyTimeout   = 600
	defaultDurationTolerance = 1.0
	defaultCacheTTLDays      = 14
	defaultCacheMaxMiB       = 256
	defaultStorageBackend    = "local"
	defaultStorageBucket     = "reels"
	defaultStorageTimeout    = 300
	defaultNtfyTimeout       = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Queue: Queue{
			PollInterval:      defaultPollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
			MaxAttempts:       defaultMaxAttempts,
			RetryBaseSeconds:  defaultRetryBaseSeconds,
			RetryCapSeconds:   defaultRetryCapSeconds,
		},
		Narration: Narration{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeout,
			TargetSeconds:  defaultTargetSeconds,
			Tolerance:      defaultTolerance,
			WordsPerMinute: defaultWordsPerMinute,
		},
		TTS: TTS{
			Command:        defaultTTSCommand,
			Voice:          defaultTTSVoice,
			TimeoutSeconds: defaultTTSTimeout,
		},
		Footage: Footage{
			BaseURL:             defaultFootageBaseURL,
			PerPage:             defaultFootagePerPage,
			MinClipSeconds:      defaultMinClipSeconds,
			MaxClips:            defaultMaxClips,
			KeywordLimit:        defaultKeywordLimit,
			DownloadConcurrency: defaultDownloadWorkers,
		},
		Assembly: Assembly{
			Width:                    defaultRenderWidth,
			Height:                   defaultRenderHeight,
			FPS:                      defaultRenderFPS,
			SegmentMinSeconds:        defaultSegmentMinSecs,
			SegmentMaxSeconds:        defaultSegmentMaxSecs,
			TimeoutSeconds:           defaultAssemblyTimeout,
			DurationToleranceSeconds: defaultDurationTolerance,
		},
		Cache: Cache{
			Dir:     defaultCacheDir(),
			TTLDays: defaultCacheTTLDays,
			MaxMiB:  defaultCacheMaxMiB,
		},
		Storage: Storage{
			Backend:        defaultStorageBackend,
			Bucket:         defaultStorageBucket,
			TimeoutSeconds: defaultStorageTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
