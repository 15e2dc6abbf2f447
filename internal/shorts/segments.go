package shorts

import (
	"log/slog"
	"path/filepath"

	"voiceclip/internal/interval"
	"voiceclip/internal/logging"
	"voiceclip/internal/services"
)

// LoadSegments reads a timestamp list. Malformed lines are logged and
// skipped; a file with no usable line is an error.
func LoadSegments(path string, logger *slog.Logger) ([]interval.Interval, error) {
	segments, skipped, err := interval.ReadTimestampFile(path)
	if err != nil {
		return nil, err
	}
	logger = logging.NewComponentLogger(logger, "shorts")
	for _, lineErr := range skipped {
		logging.WarnWithContext(logger, "timestamp line skipped", "timestamp_line_skipped",
			logging.String("file", filepath.Base(path)),
			logging.Int("line", lineErr.Line),
			logging.String("text", lineErr.Text),
			logging.Error(lineErr.Err),
			logging.String(logging.FieldErrorHint, "fix the line to HH:MM:SS → HH:MM:SS"),
			logging.String(logging.FieldImpact, "segment ignored"),
		)
	}
	if len(segments) == 0 {
		return nil, services.Wrap(services.ErrValidation, "shorts", "load segments", "no segment found in "+filepath.Base(path), nil)
	}
	return segments, nil
}
