package e2e

import (
	"archive/zip"
	"bytes"
	"html"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// SupportedFileExtensions are the policy document types the fixtures can produce.
// PDF, ODT and RTF are extracted too but have no minimal generator here.
var SupportedFileExtensions = []string{
	".txt", ".md", ".rst", ".docx", ".xlsx", ".html",
}

// WriteMinimalFile returns the bytes of a minimal file of the given extension holding text.
// Plain types get the raw text; unknown extensions fall back to it as well.
func WriteMinimalFile(ext, text string) ([]byte, error) {
	switch ext {
	case ".docx":
		return minimalDocx(text)
	case ".xlsx":
		return minimalXlsx(text)
	case ".html", ".htm":
		return minimalHTML(text), nil
	default:
		return []byte(text), nil
	}
}

// WriteDocuments writes every document in docs (file name to text) into dir.
func WriteDocuments(dir string, docs map[string]string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for name, text := range docs {
		content, err := WriteMinimalFile(filepath.Ext(name), text)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, name), content, 0644); err != nil {
			return err
		}
	}
	return nil
}

func minimalDocx(text string) ([]byte, error) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	if err != nil {
		return nil, err
	}
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` +
		html.EscapeString(text) + `</w:t></w:r></w:p></w:body></w:document>`))
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func minimalHTML(text string) []byte {
	return []byte(`<!DOCTYPE html><html><head><title>Policy</title></head><body><main><p>` +
		html.EscapeString(text) + `</p></main></body></html>`)
}

func minimalXlsx(text string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetCellValue("Sheet1", "A1", text); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
