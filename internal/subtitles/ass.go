package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"
)

// Position places subtitles on screen.
type Position string

const (
	PositionTop    Position = "top"
	PositionCenter Position = "center"
	PositionBottom Position = "bottom"
)

// ASS colour overrides for the active word (BGR order).
const (
	highlightColour = `{\c&H00FFFF&}`
	resetColour     = `{\c&HFFFFFF&}`
)

// Style controls the ASS script header.
type Style struct {
	Font     string
	FontSize int
	Position Position
	PlayResX int
	PlayResY int
}

// DefaultStyle is a 1280x720 centred Arial style.
func DefaultStyle() Style {
	return Style{Font: "Arial", FontSize: 48, Position: PositionCenter, PlayResX: 1280, PlayResY: 720}
}

// Vertical returns a copy sized for a 1080x1920 portrait frame.
func (s Style) Vertical() Style {
	s.PlayResX, s.PlayResY = 1080, 1920
	return s
}

func (s Style) withDefaults() Style {
	def := DefaultStyle()
	if strings.TrimSpace(s.Font) == "" {
		s.Font = def.Font
	}
	if s.FontSize <= 0 {
		s.FontSize = def.FontSize
	}
	if s.Position == "" {
		s.Position = def.Position
	}
	if s.PlayResX <= 0 || s.PlayResY <= 0 {
		s.PlayResX, s.PlayResY = def.PlayResX, def.PlayResY
	}
	return s
}

// alignment returns the numpad alignment and vertical margin for the position.
func (s Style) alignment() (int, int) {
	switch s.Position {
	case PositionTop:
		return 8, 30
	case PositionBottom:
		return 2, 60
	default:
		return 5, 0
	}
}

// FormatASSTime renders seconds as H:MM:SS.cc.
func FormatASSTime(seconds float64) string {
	cs := int64(math.Round(max(0, seconds) * 100))
	h := cs / 360_000
	m := (cs / 6000) % 60
	s := (cs / 100) % 60
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs%100)
}

// WriteASS writes an Advanced SubStation Alpha script. Highlight windows
// colour their active word.
func WriteASS(w io.Writer, groups []Group, style Style) error {
	style = style.withDefaults()
	align, marginV := style.alignment()
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "[Script Info]\nScriptType: v4.00+\nPlayResX: %d\nPlayResY: %d\nWrapStyle: 0\nScaledBorderAndShadow: yes\n\n", style.PlayResX, style.PlayResY)
	bw.WriteString("[V4+ Styles]\n")
	bw.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	fmt.Fprintf(bw, "Style: Default,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,&H80000000,-1,0,0,0,100,100,0,0,1,3,1,%d,40,40,%d,1\n\n", style.Font, style.FontSize, align, marginV)
	bw.WriteString("[Events]\n")
	bw.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, g := range groups {
		fmt.Fprintf(bw, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n", FormatASSTime(g.Start), FormatASSTime(g.End), assText(g))
	}
	return bw.Flush()
}

func assText(g Group) string {
	if !g.Highlighted() {
		return EscapeASS(g.Text)
	}
	parts := make([]string, len(g.Words))
	for i, word := range g.Words {
		text := EscapeASS(word.Text)
		if i == g.HighlightIndex {
			text = highlightColour + text + resetColour
		}
		parts[i] = text
	}
	return strings.Join(parts, " ")
}

var assEscaper = strings.NewReplacer(`\`, `\\`, `{`, `\{`, `}`, `\}`, "\n", `\N`)

// EscapeASS protects override-block characters in dialogue text.
func EscapeASS(text string) string {
	return assEscaper.Replace(text)
}
