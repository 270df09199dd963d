// Package pdftext reads the embedded text layer of PDF files.
package pdftext

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

type Reader struct{}

func NewReader() *Reader {
	return &Reader{}
}

// PageTexts returns the plain text of every page in order. Pages without
// content yield an empty entry so indexes line up with page numbers.
func (r *Reader) PageTexts(data []byte) (pages []string, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("parse pdf: %v", rec)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := doc.NumPage()
	pages = make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d text: %w", i, err)
		}
		pages = append(pages, text)
	}
	return pages, nil
}
