package audio

import "math"

// DefaultSampleRate is the rate every decoded timeline is resampled to.
const DefaultSampleRate = 16000

// Timeline is a decoded mono waveform with samples normalized to [-1, 1].
type Timeline struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the timeline length in seconds.
func (t Timeline) Duration() float64 {
	if t.SampleRate <= 0 {
		return 0
	}
	return float64(len(t.Samples)) / float64(t.SampleRate)
}

// Range returns the samples covering [start, end) seconds, clamped to the
// timeline bounds. The returned slice aliases the timeline.
func (t Timeline) Range(start, end float64) []float32 {
	if t.SampleRate <= 0 || end <= start {
		return nil
	}
	from := int(math.Round(start * float64(t.SampleRate)))
	to := int(math.Round(end * float64(t.SampleRate)))
	from = max(0, min(from, len(t.Samples)))
	to = max(from, min(to, len(t.Samples)))
	return t.Samples[from:to]
}

// PeakAmplitude returns the largest absolute sample value.
func PeakAmplitude(samples []float32) float64 {
	var peak float64
	for _, s := range samples {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
	}
	return peak
}
