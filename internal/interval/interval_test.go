package interval_test

import (
	"errors"
	"testing"

	"voiceclip/internal/interval"
	"voiceclip/internal/services"
)

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
		wantErr    bool
	}{
		{"valid", 0, 3, false},
		{"negative start", -1, 3, true},
		{"empty", 5, 5, true},
		{"reversed", 6, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := interval.New(tt.start, tt.end)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%v, %v) error = %v, wantErr %v", tt.start, tt.end, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, services.ErrPolicyViolation) {
				t.Fatalf("expected policy violation marker, got %v", err)
			}
		})
	}
}

func TestIntervalHelpers(t *testing.T) {
	iv := interval.Interval{Start: 60, End: 90}
	if iv.Duration() != 30 {
		t.Fatalf("duration = %v", iv.Duration())
	}
	if got := iv.Shift(-60); got != (interval.Interval{Start: 0, End: 30}) {
		t.Fatalf("shift = %+v", got)
	}
	if !iv.Overlaps(interval.Interval{Start: 89, End: 100}) {
		t.Fatal("expected overlap")
	}
	if iv.Overlaps(interval.Interval{Start: 90, End: 100}) {
		t.Fatal("touching intervals must not overlap")
	}
	if got := iv.String(); got != "00:01:00 → 00:01:30" {
		t.Fatalf("string = %q", got)
	}
	if total := interval.Total([]interval.Interval{{Start: 0, End: 6}, {Start: 9, End: 12}}); total != 9 {
		t.Fatalf("total = %v", total)
	}
}

func TestFormatAndParseClock(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00"},
		{59.9, "00:00:59"},
		{657, "00:10:57"},
		{3600*12 + 61, "12:01:01"},
		{-4, "00:00:00"},
	}
	for _, tt := range tests {
		if got := interval.FormatClock(tt.seconds); got != tt.want {
			t.Fatalf("FormatClock(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}

	got, err := interval.ParseClock(" 01:02:03.5 ")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if got != 3723.5 {
		t.Fatalf("ParseClock = %v", got)
	}
	for _, bad := range []string{"", "10:00", "aa:00:00", "00:61:00", "00:00:60", "00:-1:00"} {
		if _, err := interval.ParseClock(bad); !errors.Is(err, services.ErrMalformedTimestamp) {
			t.Fatalf("ParseClock(%q) expected malformed timestamp, got %v", bad, err)
		}
	}
}

func TestFormatPrecise(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00.000"},
		{12.3456, "00:00:12.346"},
		{3723.5, "01:02:03.500"},
		{59.9996, "00:01:00.000"},
		{-1, "00:00:00.000"},
	}
	for _, tt := range tests {
		if got := interval.FormatPrecise(tt.seconds); got != tt.want {
			t.Fatalf("FormatPrecise(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
	back, err := interval.ParseClock(interval.FormatPrecise(3723.5))
	if err != nil || back != 3723.5 {
		t.Fatalf("round trip = %v (%v)", back, err)
	}
}
