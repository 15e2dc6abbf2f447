package config

const (
	defaultConfigPath     = "~/.config/voiceclip/config.toml"
	projectConfigName     = "voiceclip.toml"
	defaultWorkDir        = "~/.local/share/voiceclip/work"
	defaultOutputDir      = "~/voiceclip"
	defaultLogDir         = "~/.local/share/voiceclip/logs"
	defaultStateDir       = "~/.local/share/voiceclip"
	defaultReferencePath  = "~/.config/voiceclip/reference.json"
	defaultFFmpegBinary   = "ffmpeg"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultVariantFast    = "fast"
	defaultVariantPrecise = "precise"
	defaultVADMethod      = "silero"

	defaultWindowSeconds         = 3.0
	defaultSilenceThreshold      = 0.005
	defaultSimilarityThreshold   = 0.95
	defaultMinConsecutiveWindows = 1
	defaultSampleRate            = 16000
	defaultTopMatches            = 10

	defaultClipMinSeconds    = 3.0
	defaultClipMaxSeconds    = 60.0
	defaultClipTargetSeconds = 30.0
	AbsorbBelow              = "below"
	AbsorbAtOrBelow          = "at_or_below"

	defaultWordsPerGroup  = 4
	defaultMinWordSeconds = 0.15
	defaultSubtitleFormat = "ass"
	defaultFont           = "Arial"
	defaultFontSize       = 48
	defaultPosition       = "center"

	defaultBatchWorkers       = 2
	defaultTaskTimeoutSeconds = 600

	defaultRenderPreset  = "fast"
	defaultRenderCRF     = 23
	defaultRenderTimeout = 300

	defaultNtfyTimeout = 10
)

var defaultExtensions = []string{".mp4", ".mkv", ".mov", ".webm", ".m4a", ".mp3", ".wav", ".flac"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:       defaultWorkDir,
			OutputDir:     defaultOutputDir,
			LogDir:        defaultLogDir,
			StateDir:      defaultStateDir,
			ReferencePath: defaultReferencePath,
		},
		Detection: Detection{
			WindowSeconds:         defaultWindowSeconds,
			SilenceThreshold:      defaultSilenceThreshold,
			SimilarityThreshold:   defaultSimilarityThreshold,
			MinConsecutiveWindows: defaultMinConsecutiveWindows,
			SampleRate:            defaultSampleRate,
			TopMatches:            defaultTopMatches,
		},
		Clips: Clips{
			MinSeconds:    defaultClipMinSeconds,
			MaxSeconds:    defaultClipMaxSeconds,
			TargetSeconds: defaultClipTargetSeconds,
			AbsorbMode:    AbsorbBelow,
		},
		Subtitles: Subtitles{
			WordsPerGroup:  defaultWordsPerGroup,
			MinWordSeconds: defaultMinWordSeconds,
			Format:         defaultSubtitleFormat,
			Font:           defaultFont,
			FontSize:       defaultFontSize,
			Position:       defaultPosition,
		},
		Embedding: Embedding{
			Variant: defaultVariantFast,
		},
		Transcription: Transcription{
			Variant:   defaultVariantPrecise,
			VADMethod: defaultVADMethod,
		},
		Batch: Batch{
			Workers:            defaultBatchWorkers,
			TaskTimeoutSeconds: defaultTaskTimeoutSeconds,
			Extensions:         append([]string(nil), defaultExtensions...),
		},
		Render: Render{
			FFmpegBinary:   defaultFFmpegBinary,
			Preset:         defaultRenderPreset,
			CRF:            defaultRenderCRF,
			TimeoutSeconds: defaultRenderTimeout,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
