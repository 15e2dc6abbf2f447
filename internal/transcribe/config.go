package transcribe

import (
	"voiceclip/internal/config"
	"voiceclip/internal/voiceprint"
)

// Variant reuses the Fast/Precise selector shared with the embedding oracle.
type Variant = voiceprint.Variant

const (
	Fast    = voiceprint.Fast
	Precise = voiceprint.Precise
)

// WhisperX models per variant.
const (
	FastModel    = "small"
	PreciseModel = "large-v3"
)

// ModelFor returns the WhisperX model for a variant.
func ModelFor(v Variant) string {
	if v == Precise {
		return PreciseModel
	}
	return FastModel
}

// Config captures runtime settings for WhisperX.
type Config struct {
	Variant     Variant
	Language    string
	CUDAEnabled bool
	// VADMethod selects voice activity detection ("silero" or "pyannote").
	VADMethod string
	// HFToken authorizes pyannote VAD downloads.
	HFToken string
	// WorkDir receives extracted clip audio and WhisperX output.
	WorkDir string
}

// ConfigFromConfig maps the [transcription] section.
func ConfigFromConfig(cfg *config.Config) (Config, error) {
	variant, err := voiceprint.ParseVariant(cfg.Transcription.Variant)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Variant:     variant,
		Language:    cfg.Transcription.Language,
		CUDAEnabled: cfg.Transcription.CUDAEnabled,
		VADMethod:   cfg.Transcription.VADMethod,
		HFToken:     cfg.Embedding.HFToken,
		WorkDir:     cfg.Paths.WorkDir,
	}, nil
}

// WhisperX invocation constants.
const (
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	BatchSize         = "4"
	ChunkSize         = "15"
	VADOnset          = "0.08"
	VADOffset         = "0.07"
	BeamSize          = "5"
	Temperature       = "0.0"
	OutputFormat      = "json"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "float32"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
)

// UVXCommand launches WhisperX without a managed environment.
const UVXCommand = "uvx"
