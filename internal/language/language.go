package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// words maps spelled-out language names accepted in configuration.
var words = map[string]string{
	"english":    "en",
	"french":     "fr",
	"francais":   "fr",
	"français":   "fr",
	"spanish":    "es",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
}

// ToISO2 converts a language code, BCP 47 tag, or English language name to
// its two-letter ISO 639-1 code. Unrecognized input yields "".
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == "auto" {
		return ""
	}
	if iso, ok := words[code]; ok {
		return iso
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No {
		return ""
	}
	if iso := base.String(); len(iso) == 2 {
		return iso
	}
	return ""
}

// DisplayName returns the English name of a language, "Auto" for an empty
// code, or the upper-cased input when unknown.
func DisplayName(code string) string {
	iso := ToISO2(code)
	if iso == "" {
		if strings.TrimSpace(code) == "" {
			return "Auto"
		}
		return strings.ToUpper(strings.TrimSpace(code))
	}
	if name := display.English.Languages().Name(language.Make(iso)); name != "" {
		return name
	}
	return strings.ToUpper(iso)
}
