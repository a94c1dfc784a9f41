package corpus

import (
	"strings"
	"unicode"
)

// Normalize trims text, collapses runs of spaces and tabs inside each line and drops blank
// lines. Line breaks between non-blank lines are kept.
func Normalize(text string) string {
	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		if l := collapse(line); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func collapse(s string) string {
	var b strings.Builder
	wasSpace := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		wasSpace = false
	}
	return b.String()
}
