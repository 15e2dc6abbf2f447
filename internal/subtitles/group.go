package subtitles

import (
	"strings"

	"voiceclip/internal/config"
)

// Defaults for word grouping.
const (
	DefaultWordsPerGroup   = 4
	DefaultMinWordDuration = 0.15
	DefaultEpsilon         = 0.01
)

// Word is one transcribed word with clip-relative timing in seconds.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Group is one displayed subtitle event. HighlightIndex is -1 for a plain
// group and the index of the active word for a highlight window.
type Group struct {
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Text           string  `json:"text"`
	Words          []Word  `json:"words"`
	HighlightIndex int     `json:"highlight_index"`
}

// Highlighted reports whether the group marks an active word.
func (g Group) Highlighted() bool {
	return g.HighlightIndex >= 0 && g.HighlightIndex < len(g.Words)
}

// Options tunes GroupWords and Highlights.
type Options struct {
	WordsPerGroup   int
	MinWordDuration float64
	Epsilon         float64
}

// DefaultOptions returns four words per group, 0.15s per word and a 10ms
// epsilon.
func DefaultOptions() Options {
	return Options{
		WordsPerGroup:   DefaultWordsPerGroup,
		MinWordDuration: DefaultMinWordDuration,
		Epsilon:         DefaultEpsilon,
	}
}

// OptionsFromConfig maps the [subtitles] section.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.WordsPerGroup = cfg.Subtitles.WordsPerGroup
	opts.MinWordDuration = cfg.Subtitles.MinWordSeconds
	return opts.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.WordsPerGroup < 1 {
		o.WordsPerGroup = DefaultWordsPerGroup
	}
	if o.MinWordDuration < 0 {
		o.MinWordDuration = 0
	}
	if o.Epsilon <= 0 {
		o.Epsilon = DefaultEpsilon
	}
	return o
}

// NormalizeWords trims text, drops empty words, clamps negative times to zero
// and collapses inverted spans to zero length.
func NormalizeWords(words []Word) []Word {
	out := make([]Word, 0, len(words))
	for _, w := range words {
		w.Text = strings.TrimSpace(w.Text)
		if w.Text == "" {
			continue
		}
		w.Start = max(0, w.Start)
		w.End = max(0, w.End)
		if w.End < w.Start {
			w.End = w.Start
		}
		out = append(out, w)
	}
	return out
}

// GroupWords chunks words into display groups. Each group lasts at least
// MinWordDuration per word, starts no earlier than the previous group ends,
// and always has positive length.
func GroupWords(words []Word, opts Options) []Group {
	opts = opts.withDefaults()
	words = NormalizeWords(words)
	if len(words) == 0 {
		return []Group{}
	}

	groups := make([]Group, 0, (len(words)+opts.WordsPerGroup-1)/opts.WordsPerGroup)
	for i := 0; i < len(words); i += opts.WordsPerGroup {
		chunk := words[i:min(i+opts.WordsPerGroup, len(words))]
		g := Group{
			Start:          chunk[0].Start,
			End:            chunk[len(chunk)-1].End,
			Text:           joinWords(chunk),
			Words:          append([]Word(nil), chunk...),
			HighlightIndex: -1,
		}
		if floor := opts.MinWordDuration * float64(len(chunk)); g.End-g.Start < floor {
			g.End = g.Start + floor
		}
		groups = append(groups, g)
	}

	for i := range groups {
		if i > 0 && groups[i].Start < groups[i-1].End {
			groups[i].Start = groups[i-1].End
		}
		if groups[i].Start >= groups[i].End {
			groups[i].End = groups[i].Start + opts.Epsilon
		}
	}
	return groups
}

// Highlights expands each group into one window per word. A window spans the
// word clipped to its group, never starts before the previous window ends,
// and is stretched to Epsilon when clipping leaves nothing. Each later word of
// the group keeps Epsilon in reserve before the group end, so windows stay
// inside their group unless the group is shorter than Epsilon per word; only
// then do they run past g.End.
func Highlights(groups []Group, opts Options) []Group {
	opts = opts.withDefaults()
	out := make([]Group, 0, len(groups)*opts.WordsPerGroup)
	prevEnd := 0.0
	for _, g := range groups {
		for idx, w := range g.Words {
			limit := g.End - float64(len(g.Words)-1-idx)*opts.Epsilon
			start := min(max(w.Start, g.Start), g.End)
			end := min(max(w.End, g.Start), g.End, limit)
			start = max(start, prevEnd)
			if end <= start {
				start = max(min(start, limit-opts.Epsilon), prevEnd)
				end = start + opts.Epsilon
			}
			out = append(out, Group{
				Start:          start,
				End:            end,
				Text:           g.Text,
				Words:          g.Words,
				HighlightIndex: idx,
			})
			prevEnd = end
		}
	}
	return out
}

func joinWords(words []Word) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}
