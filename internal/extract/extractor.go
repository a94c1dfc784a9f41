// Package extract turns policy documents of various formats into plain text.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrUnsupported is returned for file extensions no extractor handles.
var ErrUnsupported = errors.New("unsupported document format")

// Text is the result of extracting one document. Title is empty when the format carries none.
type Text struct {
	Title string
	Body  string
}

type extractFunc func(content []byte) (Text, error)

// Extractor extracts plain text from document files by extension.
type Extractor struct {
	byExt map[string]extractFunc
}

// NewExtractor returns an Extractor for plain text, Markdown, PDF, DOCX, ODT, RTF, HTML and XLSX.
func NewExtractor() *Extractor {
	body := func(f func([]byte) (string, error)) extractFunc {
		return func(content []byte) (Text, error) {
			s, err := f(content)
			return Text{Body: s}, err
		}
	}
	return &Extractor{byExt: map[string]extractFunc{
		".txt":  body(extractPlain),
		".md":   extractMarkdown,
		".rst":  body(extractPlain),
		".pdf":  body(extractPDF),
		".docx": body(extractDOCX),
		".odt":  body(extractCat(".odt")),
		".rtf":  body(extractCat(".rtf")),
		".html": extractHTML,
		".htm":  extractHTML,
		".xlsx": body(extractExcel),
	}}
}

// Supported reports whether ext (with leading dot, any case) can be extracted.
func (e *Extractor) Supported(ext string) bool {
	_, ok := e.byExt[strings.ToLower(ext)]
	return ok
}

// Extensions returns the supported extensions, sorted.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(e.byExt))
	for ext := range e.byExt {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// Extract reads the file at path and returns its text.
func (e *Extractor) Extract(path string) (Text, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Text{}, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Ext(path))
}

// ExtractBytes extracts text from content based on ext (with leading dot, e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) (Text, error) {
	f, ok := e.byExt[strings.ToLower(ext)]
	if !ok {
		return Text{}, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	t, err := f(content)
	if err != nil {
		return Text{}, err
	}
	t.Title = strings.TrimSpace(t.Title)
	t.Body = strings.TrimSpace(t.Body)
	return t, nil
}
