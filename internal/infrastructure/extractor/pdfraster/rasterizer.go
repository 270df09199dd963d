// Package pdfraster renders PDF pages to PNG images through MuPDF.
package pdfraster

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"

	"github.com/kirillkom/doc-triage/internal/core/domain"
)

const maxPages = 50

type Rasterizer struct {
	maxPages int
}

func NewRasterizer(pageLimit int) *Rasterizer {
	if pageLimit <= 0 {
		pageLimit = maxPages
	}
	return &Rasterizer{maxPages: pageLimit}
}

// RenderPages renders every page at dpi, in page order. Documents longer than
// the page limit are rejected rather than silently truncated.
func (r *Rasterizer) RenderPages(ctx context.Context, data []byte, dpi float64) ([]domain.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	if total > r.maxPages {
		return nil, fmt.Errorf("pdf has %d pages, limit is %d", total, r.maxPages)
	}

	images := make([]domain.Image, 0, total)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}
		images = append(images, domain.Image{MimeType: "image/png", Data: buf.Bytes()})
	}
	return images, nil
}
