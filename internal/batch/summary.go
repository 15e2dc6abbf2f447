package batch

import (
	"bufio"
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"voiceclip/internal/fileutil"
	"voiceclip/internal/interval"
)

// TopSourceCount is how many sources the summary ranks by matched time.
const TopSourceCount = 5

// Summary aggregates a batch run.
type Summary struct {
	RunID           string        `json:"run_id"`
	Total           int           `json:"total"`
	Succeeded       int           `json:"succeeded"`
	Failed          int           `json:"failed"`
	TotalDuration   float64       `json:"total_duration"`
	MatchedDuration float64       `json:"matched_duration"`
	Segments        int           `json:"segments"`
	Elapsed         time.Duration `json:"elapsed"`
	TopSources      []string      `json:"top_sources,omitempty"`
}

// SortBySource orders results by SourceID in place.
func SortBySource(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(a.SourceID, b.SourceID)
	})
}

// Summarize counts outcomes and totals durations over successful results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		s.Elapsed = max(s.Elapsed, r.Elapsed)
		if r.Status != StatusSuccess {
			s.Failed++
			continue
		}
		s.Succeeded++
		s.TotalDuration += r.TotalDuration
		s.MatchedDuration += r.MatchedDuration
		s.Segments += len(r.Segments)
	}
	for _, r := range TopSources(results, TopSourceCount) {
		s.TopSources = append(s.TopSources, r.SourceID)
	}
	return s
}

// TopSources returns up to n successful results with matched speech, most
// matched first.
func TopSources(results []Result, n int) []Result {
	ranked := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Status == StatusSuccess && r.MatchedDuration > 0 {
			ranked = append(ranked, r)
		}
	}
	slices.SortStableFunc(ranked, func(a, b Result) int {
		if c := cmp.Compare(b.MatchedDuration, a.MatchedDuration); c != 0 {
			return c
		}
		return cmp.Compare(a.SourceID, b.SourceID)
	})
	return ranked[:min(n, len(ranked))]
}

const (
	rule      = "======================================================================"
	separator = "--------------------------------------------------"
)

// WriteReport writes the human readable batch report.
func WriteReport(w io.Writer, summary Summary, results []Result) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\nBATCH DETECTION RESULTS\n%s\n\n", rule, rule)
	if summary.RunID != "" {
		fmt.Fprintf(bw, "Run: %s\n", summary.RunID)
	}
	fmt.Fprintf(bw, "Sources analysed: %d\n", summary.Total)
	fmt.Fprintf(bw, "Succeeded: %d\n", summary.Succeeded)
	fmt.Fprintf(bw, "Failed: %d\n", summary.Failed)
	fmt.Fprintf(bw, "Matched speech: %s\n\n", interval.FormatClock(summary.MatchedDuration))

	for _, r := range results {
		fmt.Fprintf(bw, "%s\nSource: %s\nStatus: %s\n", separator, r.SourceID, r.Status)
		if r.Status != StatusSuccess {
			fmt.Fprintf(bw, "Error: %s\n\n", r.Error)
			continue
		}
		fmt.Fprintf(bw, "Duration: %s\n", interval.FormatClock(r.TotalDuration))
		fmt.Fprintf(bw, "Matched: %s\n", interval.FormatClock(r.MatchedDuration))
		if len(r.Segments) == 0 {
			bw.WriteString("No segments detected\n\n")
			continue
		}
		fmt.Fprintf(bw, "Segments (%d):\n", len(r.Segments))
		for i, seg := range r.Segments {
			fmt.Fprintf(bw, "  %d. %s\n", i+1, seg.Interval.String())
		}
		bw.WriteString("\n")
	}

	if top := TopSources(results, TopSourceCount); len(top) > 0 {
		fmt.Fprintf(bw, "%s\nTop sources by matched speech:\n", rule)
		for i, r := range top {
			fmt.Fprintf(bw, "  %d. %s (%s)\n", i+1, r.SourceID, interval.FormatClock(r.MatchedDuration))
		}
	}
	return bw.Flush()
}

type reportFile struct {
	Summary Summary  `json:"summary"`
	Results []Result `json:"results"`
}

// SaveReports writes <dir>/batch_<runID>.txt and .json and returns their paths.
func SaveReports(dir string, summary Summary, results []Result) (string, string, error) {
	name := "batch"
	if summary.RunID != "" {
		name += "_" + summary.RunID
	}
	var text strings.Builder
	if err := WriteReport(&text, summary, results); err != nil {
		return "", "", err
	}
	txtPath := filepath.Join(dir, name+".txt")
	if err := fileutil.WriteFileAtomic(txtPath, []byte(text.String()), 0o644); err != nil {
		return "", "", fmt.Errorf("write batch report: %w", err)
	}
	data, err := json.MarshalIndent(reportFile{Summary: summary, Results: results}, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encode batch report: %w", err)
	}
	jsonPath := filepath.Join(dir, name+".json")
	if err := fileutil.WriteFileAtomic(jsonPath, append(data, '\n'), 0o644); err != nil {
		return "", "", fmt.Errorf("write batch json: %w", err)
	}
	return txtPath, jsonPath, nil
}
