package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxDocumentPath = "word/document.xml"
	wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

// extractDOCX streams word/document.xml and emits the text of each <w:t> run, with one line
// per <w:p> paragraph and tabs and breaks kept as whitespace.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	f, err := zr.Open(docxDocumentPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	var (
		b      strings.Builder
		para   strings.Builder
		inText bool
	)
	flush := func() {
		if line := strings.TrimSpace(para.String()); line != "" {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(line)
		}
		para.Reset()
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("extract DOCX: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Space != wordprocessingNS {
				continue
			}
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab", "br":
				para.WriteByte(' ')
			}
		case xml.EndElement:
			if el.Name.Space != wordprocessingNS {
				continue
			}
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inText {
				para.Write(el)
			}
		}
	}
	flush()
	return b.String(), nil
}
