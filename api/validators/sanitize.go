package validators

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SanitizeString trims, drops control characters, collapses whitespace runs
// to one space and caps the result at maxLen runes. Vendor-entered names are
// echoed into exports and the CLI, so stray newlines and tabs are removed.
func SanitizeString(input string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(input))
	space := false
	for _, r := range strings.TrimSpace(input) {
		switch {
		case unicode.IsSpace(r):
			space = true
			continue
		case unicode.IsControl(r) || r == utf8.RuneError:
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	out := b.String()
	if maxLen > 0 && utf8.RuneCountInString(out) > maxLen {
		out = strings.TrimSpace(string([]rune(out)[:maxLen]))
	}
	return out
}
