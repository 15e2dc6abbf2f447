package batch

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"voiceclip/internal/detection"
	"voiceclip/internal/interval"
)

func sampleResults() []Result {
	seg := func(start, end float64) detection.Segment {
		return detection.Segment{Interval: interval.Interval{Start: start, End: end}}
	}
	return []Result{
		{SourceID: "c.mp4", Status: StatusSuccess, TotalDuration: 120, MatchedDuration: 0, Elapsed: time.Second},
		{SourceID: "a.mp4", Status: StatusSuccess, TotalDuration: 300, MatchedDuration: 45, Segments: []detection.Segment{seg(0, 30), seg(60, 75)}, Elapsed: 3 * time.Second},
		{SourceID: "b.mp4", Status: StatusError, Error: "missing reference fingerprint", Elapsed: time.Millisecond},
		{SourceID: "d.mp4", Status: StatusSuccess, TotalDuration: 60, MatchedDuration: 90},
	}
}

func TestSortBySource(t *testing.T) {
	results := sampleResults()
	SortBySource(results)
	var ids []string
	for _, r := range results {
		ids = append(ids, r.SourceID)
	}
	if !slices.Equal(ids, []string{"a.mp4", "b.mp4", "c.mp4", "d.mp4"}) {
		t.Fatalf("order = %v", ids)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleResults())
	if s.Total != 4 || s.Succeeded != 3 || s.Failed != 1 {
		t.Fatalf("counts = %+v", s)
	}
	if s.TotalDuration != 480 || s.MatchedDuration != 135 || s.Segments != 2 {
		t.Fatalf("totals = %+v", s)
	}
	if s.Elapsed != 3*time.Second {
		t.Fatalf("elapsed = %v", s.Elapsed)
	}
	if !slices.Equal(s.TopSources, []string{"d.mp4", "a.mp4"}) {
		t.Fatalf("top sources = %v", s.TopSources)
	}
}

func TestWriteReport(t *testing.T) {
	results := sampleResults()
	SortBySource(results)
	summary := Summarize(results)
	summary.RunID = "abc"
	var buf strings.Builder
	if err := WriteReport(&buf, summary, results); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"BATCH DETECTION RESULTS",
		"Run: abc",
		"Succeeded: 3",
		"Source: a.mp4\nStatus: success\nDuration: 00:05:00\nMatched: 00:00:45\nSegments (2):\n  1. 00:00:00 → 00:00:30\n  2. 00:01:00 → 00:01:15\n",
		"Error: missing reference fingerprint",
		"No segments detected",
		"  1. d.mp4 (00:01:30)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestSaveReports(t *testing.T) {
	dir := t.TempDir()
	results := sampleResults()
	summary := Summarize(results)
	summary.RunID = "r1"
	txt, js, err := SaveReports(dir, summary, results)
	if err != nil {
		t.Fatalf("SaveReports: %v", err)
	}
	if filepath.Base(txt) != "batch_r1.txt" || filepath.Base(js) != "batch_r1.json" {
		t.Fatalf("unexpected names %s %s", txt, js)
	}
	data, err := os.ReadFile(js)
	if err != nil {
		t.Fatal(err)
	}
	var decoded reportFile
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Summary.RunID != "r1" || len(decoded.Results) != 4 {
		t.Fatalf("decoded = %+v", decoded.Summary)
	}
}

func TestCollectSources(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	for _, p := range []string{
		filepath.Join(dir, "one.mp4"),
		filepath.Join(dir, "two.MKV"),
		filepath.Join(dir, "notes.txt"),
		filepath.Join(other, "one.mp4"),
	} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	accept := func(name string) bool {
		ext := strings.ToLower(filepath.Ext(name))
		return ext == ".mp4" || ext == ".mkv"
	}
	sources, err := CollectSources([]string{dir, filepath.Join(dir, "one.mp4"), filepath.Join(other, "one.mp4")}, accept)
	if err != nil {
		t.Fatalf("CollectSources: %v", err)
	}
	if len(sources) != 3 {
		t.Fatalf("expected 3 sources, got %+v", sources)
	}
	ids := map[string]bool{}
	for _, s := range sources {
		ids[s.ID] = true
	}
	if !ids["one.mp4"] || !ids["one.mp4#2"] || !ids["two.MKV"] {
		t.Fatalf("unexpected ids %v", ids)
	}
	if _, err := CollectSources([]string{filepath.Join(dir, "missing.mp4")}, accept); err == nil {
		t.Fatal("expected error for missing path")
	}
}
