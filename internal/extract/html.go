package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractHTML keeps headings, paragraphs, list items and table cells from <main> or <article>,
// falling back to the whole page. The <title> (or first <h1>) becomes the title.
func extractHTML(content []byte) (Text, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return Text{}, fmt.Errorf("parse HTML: %w", err)
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	sel := doc.Find("main, article")
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	var parts []string
	sel.Find("h1,h2,h3,h4,p,li,td").Each(func(_ int, s *goquery.Selection) {
		if t := strings.Join(strings.Fields(s.Text()), " "); t != "" {
			parts = append(parts, t)
		}
	})
	return Text{Title: title, Body: strings.Join(parts, "\n")}, nil
}
