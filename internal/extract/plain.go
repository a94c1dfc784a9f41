package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain returns content as a string. Invalid UTF-8 sequences are replaced with U+FFFD.
func extractPlain(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "\ufffd"), nil
	}
	return string(content), nil
}

// extractMarkdown treats the first level-one heading as the title.
func extractMarkdown(content []byte) (Text, error) {
	s, _ := extractPlain(content)
	var t Text
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			t.Title = strings.TrimSpace(strings.TrimPrefix(line, "# "))
			break
		}
	}
	t.Body = s
	return t, nil
}
