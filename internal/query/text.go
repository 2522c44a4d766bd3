package query

import (
	"strings"
	"unicode"
)

// normalize lowercases s and folds everything that is not a letter or digit
// into single spaces.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// padded wraps normalized text in spaces so phrases can be matched on word
// boundaries with a plain substring search.
func padded(norm string) string {
	return " " + norm + " "
}

// hasPhrase reports whether the padded text contains phrase as whole words.
func hasPhrase(text, phrase string) bool {
	return strings.Contains(text, " "+phrase+" ")
}

// hasAny reports whether any phrase occurs in the padded text.
func hasAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if hasPhrase(text, p) {
			return true
		}
	}
	return false
}
