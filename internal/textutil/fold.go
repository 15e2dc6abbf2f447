package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldAccents strips combining marks: "Élodie à l'été" becomes
// "Elodie a l'ete". Characters without a decomposition pass through.
func FoldAccents(value string) string {
	if value == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}

// filterReplacer escapes characters with meaning inside an ffmpeg filter
// option value.
var filterReplacer = strings.NewReplacer(
	`\`, `\\\\`,
	`'`, `\\\'`,
	`:`, `\:`,
	`%`, `\%`,
	`,`, `\,`,
	`;`, `\;`,
	`[`, `\[`,
	`]`, `\]`,
)

// EscapeFilterValue escapes value for use inside an ffmpeg filtergraph
// option such as drawtext text= or ass= paths.
func EscapeFilterValue(value string) string {
	return filterReplacer.Replace(value)
}

// DrawText prepares overlay text: accents folded, newlines flattened and
// filter metacharacters escaped.
func DrawText(value string) string {
	value = strings.Join(strings.Fields(FoldAccents(value)), " ")
	return EscapeFilterValue(value)
}
