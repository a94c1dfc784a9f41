package extract

import (
	"fmt"
	"os"

	"github.com/lu4p/cat"
)

// extractCat returns an extractor for OpenDocument text and RTF, which lu4p/cat reads from a
// file path; content is spooled to a temporary file with the right extension.
func extractCat(ext string) func([]byte) (string, error) {
	return func(content []byte) (string, error) {
		f, err := os.CreateTemp("", "kotae-*"+ext)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		defer os.Remove(f.Name())
		if _, err := f.Write(content); err != nil {
			_ = f.Close()
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		text, err := cat.File(f.Name())
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", ext, err)
		}
		return text, nil
	}
}
