package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// FormatSRTTime renders seconds as HH:MM:SS,mmm.
func FormatSRTTime(seconds float64) string {
	ms := int64(math.Round(max(0, seconds) * 1000))
	h := ms / 3_600_000
	m := (ms / 60_000) % 60
	s := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// WriteSRT writes groups as numbered SRT cues. Highlight windows are written
// as plain text since SRT carries no styling.
func WriteSRT(w io.Writer, groups []Group) error {
	bw := bufio.NewWriter(w)
	for i, g := range groups {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n", i+1, FormatSRTTime(g.Start), FormatSRTTime(g.End), g.Text); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ParseSRT reads cues back into plain groups. Cue numbers are ignored and
// multi-line text is joined with spaces.
func ParseSRT(r io.Reader) ([]Group, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read srt: %w", err)
	}
	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	var groups []Group
	for _, block := range strings.Split(strings.TrimSpace(content), "\n\n") {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		timing := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timing = i
				break
			}
		}
		if timing < 0 {
			continue
		}
		parts := strings.Split(lines[timing], "-->")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid cue timing %q", lines[timing])
		}
		start, err := parseSRTTimestamp(parts[0])
		if err != nil {
			return nil, err
		}
		end, err := parseSRTTimestamp(parts[1])
		if err != nil {
			return nil, err
		}
		text := strings.Join(lines[timing+1:], " ")
		groups = append(groups, Group{Start: start, End: end, Text: strings.TrimSpace(text), HighlightIndex: -1})
	}
	return groups, nil
}

func parseSRTTimestamp(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	// Some writers use a period before the milliseconds.
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000, nil
}
