package voiceprint

import (
	"fmt"
	"strings"
)

// Variant selects the speed/accuracy trade-off of an oracle model.
type Variant int

const (
	Fast Variant = iota
	Precise
)

// Speaker embedding models served by speechbrain.
const (
	FastEmbeddingModel    = "speechbrain/spkrec-xvect-voxceleb"
	PreciseEmbeddingModel = "speechbrain/spkrec-ecapa-voxceleb"
)

// ParseVariant resolves a configuration value. Empty input selects Fast.
func ParseVariant(value string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "fast":
		return Fast, nil
	case "precise":
		return Precise, nil
	default:
		return Fast, fmt.Errorf("unknown variant %q (want fast or precise)", value)
	}
}

func (v Variant) String() string {
	if v == Precise {
		return "precise"
	}
	return "fast"
}

// EmbeddingModel returns the speaker embedding model for the variant.
func (v Variant) EmbeddingModel() string {
	if v == Precise {
		return PreciseEmbeddingModel
	}
	return FastEmbeddingModel
}
