package interval

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"voiceclip/internal/services"
)

// FormatClock renders seconds as HH:MM:SS, truncating the fractional part.
// Negative input is clamped to zero.
func FormatClock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int64(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// FormatPrecise renders seconds as HH:MM:SS.mmm, rounding to milliseconds.
func FormatPrecise(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3600000, (ms%3600000)/60000, (ms%60000)/1000, ms%1000)
}

// ParseClock parses HH:MM:SS (hours may exceed two digits, seconds may carry
// a fractional part) into seconds.
func ParseClock(value string) (float64, error) {
	value = strings.TrimSpace(value)
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, services.Wrap(services.ErrMalformedTimestamp, "", "parse clock", fmt.Sprintf("%q is not HH:MM:SS", value), nil)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, services.Wrap(services.ErrMalformedTimestamp, "", "parse clock", fmt.Sprintf("invalid hours in %q", value), err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, services.Wrap(services.ErrMalformedTimestamp, "", "parse clock", fmt.Sprintf("invalid minutes in %q", value), err)
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, services.Wrap(services.ErrMalformedTimestamp, "", "parse clock", fmt.Sprintf("invalid seconds in %q", value), err)
	}
	return float64(hours*3600+minutes*60) + seconds, nil
}
