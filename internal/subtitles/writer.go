package subtitles

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"voiceclip/internal/config"
	"voiceclip/internal/fileutil"
)

// Format selects the subtitle file type.
type Format string

const (
	FormatSRT Format = "srt"
	FormatASS Format = "ass"
)

// ParseFormat maps the subtitles.format setting.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatSRT:
		return FormatSRT, nil
	case FormatASS, "":
		return FormatASS, nil
	default:
		return "", fmt.Errorf("unknown subtitle format %q", value)
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Settings is the full subtitle rendering configuration.
type Settings struct {
	Options   Options
	Format    Format
	Style     Style
	Uppercase bool
	Highlight bool
}

// SettingsFromConfig maps the [subtitles] and [render] sections.
func SettingsFromConfig(cfg *config.Config) (Settings, error) {
	format, err := ParseFormat(cfg.Subtitles.Format)
	if err != nil {
		return Settings{}, err
	}
	style := Style{
		Font:     cfg.Subtitles.Font,
		FontSize: cfg.Subtitles.FontSize,
		Position: Position(cfg.Subtitles.Position),
	}.withDefaults()
	if cfg.Render.Vertical {
		style = style.Vertical()
	}
	return Settings{
		Options:   OptionsFromConfig(cfg),
		Format:    format,
		Style:     style,
		Uppercase: cfg.Subtitles.Uppercase,
		Highlight: cfg.Subtitles.HighlightWords,
	}, nil
}

// Build groups words and applies casing and highlight expansion.
func (s Settings) Build(words []Word) []Group {
	groups := GroupWords(words, s.Options)
	if s.Uppercase {
		groups = Uppercase(groups)
	}
	if s.Highlight && s.Format == FormatASS {
		groups = Highlights(groups, s.Options)
	}
	return groups
}

// Render encodes groups in the configured format.
func (s Settings) Render(groups []Group) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch s.Format {
	case FormatSRT:
		err = WriteSRT(&buf, groups)
	default:
		err = WriteASS(&buf, groups, s.Style)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", s.Format, err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders groups and writes them atomically to path.
func (s Settings) WriteFile(path string, groups []Group) error {
	data, err := s.Render(groups)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

// Uppercase returns copies of groups with text and words upper-cased.
func Uppercase(groups []Group) []Group {
	caser := cases.Upper(language.Und)
	out := make([]Group, len(groups))
	for i, g := range groups {
		g.Text = caser.String(g.Text)
		words := make([]Word, len(g.Words))
		for j, w := range g.Words {
			w.Text = caser.String(w.Text)
			words[j] = w
		}
		g.Words = words
		out[i] = g
	}
	return out
}
