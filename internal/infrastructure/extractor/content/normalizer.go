// Package content turns a stored document into the payload sent to the
// analysis service.
package content

import (
	"context"
	"errors"
	"mime"
	"strings"
	"unicode"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
)

const (
	// MinDigitalTextChars is the non-whitespace character count at which a
	// PDF's embedded text layer is trusted over OCR.
	MinDigitalTextChars = 30
	RasterDPI           = 180
	DefaultImageMIME    = "image/png"
)

type Normalizer struct {
	blobs      ports.BlobStore
	pdfText    ports.PDFTextReader
	rasterizer ports.PageRasterizer
}

func NewNormalizer(blobs ports.BlobStore, pdfText ports.PDFTextReader, rasterizer ports.PageRasterizer) *Normalizer {
	return &Normalizer{
		blobs:      blobs,
		pdfText:    pdfText,
		rasterizer: rasterizer,
	}
}

func (n *Normalizer) Normalize(ctx context.Context, doc *domain.Document) (domain.ContentPayload, error) {
	if doc.ContentKind == domain.ContentKindText {
		if strings.TrimSpace(doc.Text) == "" {
			return domain.ContentPayload{}, domain.WrapError(domain.ErrInvalidInput, "normalize text", errors.New("empty text content"))
		}
		return domain.TextPayload(domain.SourceText, doc.Text), nil
	}

	blob, err := n.blobs.Fetch(ctx, doc.BlobLocator)
	if err != nil {
		return domain.ContentPayload{}, domain.WrapError(domain.ErrExtraction, "fetch source document", err)
	}
	if doc.IsPDF() {
		return n.normalizePDF(ctx, blob.Data)
	}

	image := domain.Image{MimeType: imageMIME(blob.ContentType, doc.Extension()), Data: blob.Data}
	return domain.ImagePayload(domain.SourceImage, []domain.Image{image}), nil
}

// normalizePDF prefers the embedded text layer and falls back to rendering
// every page when the layer is too thin to be real content.
func (n *Normalizer) normalizePDF(ctx context.Context, data []byte) (domain.ContentPayload, error) {
	pages, err := n.pdfText.PageTexts(data)
	if err != nil {
		return domain.ContentPayload{}, domain.WrapError(domain.ErrExtraction, "read pdf text", err)
	}
	text := strings.TrimSpace(strings.Join(pages, "\n"))
	if countNonSpace(text) >= MinDigitalTextChars {
		return domain.TextPayload(domain.SourceDigitalPDF, text), nil
	}

	images, err := n.rasterizer.RenderPages(ctx, data, RasterDPI)
	if err != nil {
		return domain.ContentPayload{}, domain.WrapError(domain.ErrExtraction, "render pdf pages", err)
	}
	if len(images) == 0 {
		return domain.ContentPayload{}, domain.WrapError(domain.ErrExtraction, "render pdf pages", errors.New("pdf has no pages"))
	}
	return domain.ImagePayload(domain.SourceScannedPDF, images), nil
}

func imageMIME(declared, ext string) string {
	declared = strings.TrimSpace(strings.ToLower(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ext != "" {
		if guessed := mime.TypeByExtension(ext); guessed != "" {
			if i := strings.IndexByte(guessed, ';'); i >= 0 {
				guessed = guessed[:i]
			}
			return guessed
		}
	}
	return DefaultImageMIME
}

func countNonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
