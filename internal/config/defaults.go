package config

const (
	defaultStagingDir              = "~/.local/share/reelsmith/staging"
	defaultOutputDir               = "~/.local/share/reelsmith/output"
	defaultAudioDir                = "~/.local/share/reelsmith/music"
	defaultLogDir                  = "~/.local/share/reelsmith/logs"
	defaultAPIBind                 = "127.0.0.1:7490"
	defaultWordsPerSecond          = 2.5
	defaultMaxTotalSeconds         = 180
	defaultMaxClipsPerSentence     = 3
	defaultFetchWorkers            = 4
	defaultNormalizeWorkers        = 2
	defaultConcatWorkers           = 2
	defaultStaleWorkspaceHours     = 24
	defaultCanvasWidth             = 1080
	defaultCanvasHeight            = 1920
	defaultPixelFormat             = "yuv420p"
	defaultFrameRate               = 30
	defaultFFmpegBinary            = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultVideoCodec              = "libx264"
	defaultPreset                  = "fast"
	defaultCRF                     = 23
	defaultAudioCodec              = "aac"
	defaultAudioBitrate            = "192k"
	defaultCommandTimeoutSeconds   = 300
	defaultFetchTimeoutSeconds     = 120
	defaultFetchUserAgent          = "reelsmith/dev"
	defaultFetchMaxMegabytes       = 512
	defaultKafkaTopic              = "reelsmith.requests"
	defaultKafkaGroupID            = "reelsmith"
	defaultNotifyRequestTimeout    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultAcceptVideoOnlyFallback = false
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			OutputDir:  defaultOutputDir,
			AudioDir:   defaultAudioDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Assembly: Assembly{
			WordsPerSecond:          defaultWordsPerSecond,
			MaxTotalSeconds:         defaultMaxTotalSeconds,
			MaxClipsPerSentence:     defaultMaxClipsPerSentence,
			FetchWorkers:            defaultFetchWorkers,
			NormalizeWorkers:        defaultNormalizeWorkers,
			ConcatWorkers:           defaultConcatWorkers,
			AcceptVideoOnlyFallback: defaultAcceptVideoOnlyFallback,
			StaleWorkspaceHours:     defaultStaleWorkspaceHours,
		},
		Canvas: Canvas{
			Width:       defaultCanvasWidth,
			Height:      defaultCanvasHeight,
			PixelFormat: defaultPixelFormat,
			FrameRate:   defaultFrameRate,
		},
		Transcode: Transcode{
			FFmpegBinary:          defaultFFmpegBinary,
			FFprobeBinary:         defaultFFprobeBinary,
			VideoCodec:            defaultVideoCodec,
			Preset:                defaultPreset,
			CRF:                   defaultCRF,
			AudioCodec:            defaultAudioCodec,
			AudioBitrate:          defaultAudioBitrate,
			CommandTimeoutSeconds: defaultCommandTimeoutSeconds,
		},
		Fetch: Fetch{
			TimeoutSeconds: defaultFetchTimeoutSeconds,
			UserAgent:      defaultFetchUserAgent,
			MaxMegabytes:   defaultFetchMaxMegabytes,
		},
		Kafka: Kafka{
			Topic:   defaultKafkaTopic,
			GroupID: defaultKafkaGroupID,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			OnSuccess:      true,
			OnFailure:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
