package pdfextract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Page holds the plain text of one PDF page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// ExtractPages parses the PDF bytes and returns plain text per page.
// Pages whose text cannot be decoded yield an empty Text rather than
// failing the whole document; an unreadable document returns an error.
func ExtractPages(data []byte) ([]Page, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}

	total := reader.NumPage()
	if total == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	pages := make([]Page, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single undecodable page should not sink the document.
			pages = append(pages, Page{Number: i})
			continue
		}
		pages = append(pages, Page{Number: i, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}
