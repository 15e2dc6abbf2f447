package interval

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"voiceclip/internal/fileutil"
	"voiceclip/internal/services"
)

// Arrow separates the start and end clocks on a timestamp line.
const Arrow = "→"

// LineError describes a timestamp line that was skipped while reading.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e LineError) Unwrap() error { return e.Err }

// WriteTimestamps writes one "<index>. HH:MM:SS → HH:MM:SS" line per interval,
// preceded by title and an underline when title is non-empty.
func WriteTimestamps(w io.Writer, title string, intervals []Interval) error {
	bw := bufio.NewWriter(w)
	if title = strings.TrimSpace(title); title != "" {
		fmt.Fprintf(bw, "%s\n%s\n\n", title, strings.Repeat("=", 40))
	}
	for i, iv := range intervals {
		fmt.Fprintf(bw, "%d. %s\n", i+1, iv.String())
	}
	return bw.Flush()
}

// WriteTimestampFile atomically replaces path with the rendered timestamp list.
func WriteTimestampFile(path, title string, intervals []Interval) error {
	var b strings.Builder
	if err := WriteTimestamps(&b, title, intervals); err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write timestamp file: %w", err)
	}
	return nil
}

// ReadTimestamps parses a timestamp list. Lines that do not start with a digit
// (titles, rules, blanks) are ignored. Lines that start with a digit but do
// not parse into a valid interval are skipped and reported as LineErrors.
func ReadTimestamps(r io.Reader) ([]Interval, []LineError, error) {
	var (
		intervals []Interval
		skipped   []LineError
	)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] < '0' || line[0] > '9' {
			continue
		}
		iv, err := parseLine(line)
		if err != nil {
			skipped = append(skipped, LineError{Line: lineNo, Text: line, Err: err})
			continue
		}
		intervals = append(intervals, iv)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read timestamps: %w", err)
	}
	return intervals, skipped, nil
}

// ReadTimestampFile opens path and parses it with ReadTimestamps.
func ReadTimestampFile(path string) ([]Interval, []LineError, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, services.Wrap(services.ErrNotFound, "timestamps", "open", path, err)
		}
		return nil, nil, fmt.Errorf("open timestamp file: %w", err)
	}
	defer file.Close()
	return ReadTimestamps(file)
}

func parseLine(line string) (Interval, error) {
	dot := strings.IndexByte(line, '.')
	if dot <= 0 {
		return Interval{}, services.Wrap(services.ErrMalformedTimestamp, "", "parse line", "missing index", nil)
	}
	if _, err := strconv.Atoi(line[:dot]); err != nil {
		return Interval{}, services.Wrap(services.ErrMalformedTimestamp, "", "parse line", "invalid index", err)
	}
	startText, endText, ok := strings.Cut(line[dot+1:], Arrow)
	if !ok {
		return Interval{}, services.Wrap(services.ErrMalformedTimestamp, "", "parse line", "missing "+Arrow, nil)
	}
	start, err := ParseClock(startText)
	if err != nil {
		return Interval{}, err
	}
	end, err := ParseClock(endText)
	if err != nil {
		return Interval{}, err
	}
	iv := Interval{Start: start, End: end}
	if err := iv.Validate(); err != nil {
		return Interval{}, services.Wrap(services.ErrMalformedTimestamp, "", "parse line", "invalid interval", err)
	}
	return iv, nil
}
