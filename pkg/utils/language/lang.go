// package language wraps x/text/language for normalizing the language tags
// reported by transcription backends and platform subtitle tracks.
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const fallback = "en"

// Normalize canonicalizes a language identifier ("en-US", "english", "EN")
// to its BCP 47 base form. Unparseable input falls back to English, which is
// the only language the default transcription model is tuned for.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}

	tag, err := language.Parse(s)
	if err != nil {
		return fallback
	}

	base, conf := tag.Base()
	if conf == language.No {
		return fallback
	}
	return base.String()
}

// DisplayName returns the English name of a language tag, or the tag itself
// when it cannot be parsed.
func DisplayName(s string) string {
	tag, err := language.Parse(s)
	if err != nil {
		return s
	}
	return display.English.Languages().Name(tag)
}
