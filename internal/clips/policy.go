package clips

import (
	"fmt"
	"strings"

	"voiceclip/internal/config"
	"voiceclip/internal/services"
)

// AbsorbMode decides when a short tail is folded into the preceding slice.
type AbsorbMode int

const (
	// AbsorbBelow folds a remainder strictly shorter than the minimum.
	AbsorbBelow AbsorbMode = iota
	// AbsorbAtOrBelow also folds a remainder exactly as long as the minimum.
	AbsorbAtOrBelow
)

func (m AbsorbMode) String() string {
	if m == AbsorbAtOrBelow {
		return config.AbsorbAtOrBelow
	}
	return config.AbsorbBelow
}

// ParseAbsorbMode maps the clips.absorb_mode setting. Empty selects AbsorbBelow.
func ParseAbsorbMode(value string) (AbsorbMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", config.AbsorbBelow:
		return AbsorbBelow, nil
	case config.AbsorbAtOrBelow:
		return AbsorbAtOrBelow, nil
	default:
		return AbsorbBelow, fmt.Errorf("unknown absorb mode %q", value)
	}
}

// Policy bounds clip lengths in seconds.
//
// An absorbed final slice may run past Target and is bounded by Max + Min.
type Policy struct {
	Min    float64
	Max    float64
	Target float64
	Absorb AbsorbMode
}

// DefaultPolicy returns 3s/60s/30s with strict-below absorption.
func DefaultPolicy() Policy {
	return Policy{Min: 3, Max: 60, Target: 30, Absorb: AbsorbBelow}
}

// PolicyFromConfig maps the [clips] section.
func PolicyFromConfig(cfg *config.Config) (Policy, error) {
	mode, err := ParseAbsorbMode(cfg.Clips.AbsorbMode)
	if err != nil {
		return Policy{}, services.Wrap(services.ErrConfiguration, "clips", "absorb mode", "", err)
	}
	p := Policy{
		Min:    cfg.Clips.MinSeconds,
		Max:    cfg.Clips.MaxSeconds,
		Target: cfg.Clips.TargetSeconds,
		Absorb: mode,
	}
	return p, p.Validate()
}

// Validate requires positive durations with Min <= Target <= Max.
func (p Policy) Validate() error {
	violation := func(msg string) error {
		return services.Wrap(services.ErrPolicyViolation, "clips", "validate policy", msg, nil)
	}
	switch {
	case p.Min <= 0:
		return violation(fmt.Sprintf("min %.3fs must be positive", p.Min))
	case p.Max <= 0:
		return violation(fmt.Sprintf("max %.3fs must be positive", p.Max))
	case p.Target <= 0:
		return violation(fmt.Sprintf("target %.3fs must be positive", p.Target))
	case p.Min > p.Target:
		return violation(fmt.Sprintf("min %.3fs exceeds target %.3fs", p.Min, p.Target))
	case p.Target > p.Max:
		return violation(fmt.Sprintf("target %.3fs exceeds max %.3fs", p.Target, p.Max))
	}
	return nil
}

func (p Policy) absorbs(remainder float64) bool {
	if remainder <= tolerance {
		return false
	}
	if p.Absorb == AbsorbAtOrBelow {
		return remainder <= p.Min+tolerance
	}
	return remainder < p.Min-tolerance
}
