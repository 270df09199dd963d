package content

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
)

type blobFake struct {
	blob    ports.Blob
	err     error
	fetched []string
}

func (f *blobFake) Store(context.Context, string, string, string, io.Reader) (string, error) {
	return "", errors.New("not implemented")
}

func (f *blobFake) Fetch(_ context.Context, locator string) (ports.Blob, error) {
	f.fetched = append(f.fetched, locator)
	if f.err != nil {
		return ports.Blob{}, f.err
	}
	return f.blob, nil
}

type pdfTextFake struct {
	pages []string
	err   error
}

func (f *pdfTextFake) PageTexts([]byte) ([]string, error) {
	return f.pages, f.err
}

type rasterizerFake struct {
	pages int
	err   error
	calls int
	dpi   float64
}

func (f *rasterizerFake) RenderPages(_ context.Context, _ []byte, dpi float64) ([]domain.Image, error) {
	f.calls++
	f.dpi = dpi
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Image, 0, f.pages)
	for i := 0; i < f.pages; i++ {
		out = append(out, domain.Image{MimeType: "image/png", Data: []byte{byte(i)}})
	}
	return out, nil
}

func fileDoc(name string) *domain.Document {
	return &domain.Document{ID: "d", Name: name, ContentKind: domain.ContentKindFile, BlobLocator: "documents/org/" + name}
}

func TestNormalizeTextDocumentIsVerbatim(t *testing.T) {
	blobs := &blobFake{}
	n := NewNormalizer(blobs, &pdfTextFake{}, &rasterizerFake{})
	text := strings.Repeat("long text ", 1000)

	payload, err := n.Normalize(context.Background(), &domain.Document{ContentKind: domain.ContentKindText, Text: text})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if payload.Kind != domain.PayloadText || payload.Source != domain.SourceText || payload.Text != text {
		t.Fatalf("unexpected payload: kind=%s source=%s len=%d", payload.Kind, payload.Source, len(payload.Text))
	}
	if len(blobs.fetched) != 0 {
		t.Fatalf("text documents must not touch the blob store")
	}
}

func TestNormalizeEmptyTextIsValidationError(t *testing.T) {
	n := NewNormalizer(&blobFake{}, &pdfTextFake{}, &rasterizerFake{})
	_, err := n.Normalize(context.Background(), &domain.Document{ContentKind: domain.ContentKindText, Text: " \n"})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestNormalizeDigitalPDFNeverRasterizes(t *testing.T) {
	raster := &rasterizerFake{pages: 2}
	n := NewNormalizer(
		&blobFake{blob: ports.Blob{Data: []byte("%PDF"), ContentType: "application/pdf"}},
		&pdfTextFake{pages: []string{"  Invoice 2026-001  ", "Total due: 1,200 EUR by March"}},
		raster,
	)

	payload, err := n.Normalize(context.Background(), fileDoc("invoice.PDF"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if payload.Kind != domain.PayloadText || payload.Source != domain.SourceDigitalPDF {
		t.Fatalf("expected digital pdf text payload, got %s/%s", payload.Kind, payload.Source)
	}
	if payload.Text != "Invoice 2026-001  \nTotal due: 1,200 EUR by March" {
		t.Fatalf("unexpected text %q", payload.Text)
	}
	if len(payload.Images) != 0 || raster.calls != 0 {
		t.Fatalf("digital pdf must not produce images")
	}
}

func TestNormalizeScannedPDFRendersEveryPage(t *testing.T) {
	raster := &rasterizerFake{pages: 3}
	// 29 non-whitespace characters stays below the threshold
	thin := []string{strings.Repeat("a", 20), " " + strings.Repeat("b", 9) + " "}
	n := NewNormalizer(&blobFake{blob: ports.Blob{Data: []byte("%PDF")}}, &pdfTextFake{pages: thin}, raster)

	payload, err := n.Normalize(context.Background(), fileDoc("scan.pdf"))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if payload.Kind != domain.PayloadImages || payload.Source != domain.SourceScannedPDF {
		t.Fatalf("expected scanned pdf images, got %s/%s", payload.Kind, payload.Source)
	}
	if len(payload.Images) != 3 || raster.dpi != RasterDPI {
		t.Fatalf("expected 3 pages at %d dpi, got %d at %v", RasterDPI, len(payload.Images), raster.dpi)
	}
	for i, img := range payload.Images {
		if img.Data[0] != byte(i) {
			t.Fatalf("page order not preserved at %d", i)
		}
	}
	if payload.Text != "" {
		t.Fatalf("scanned payload must not carry text")
	}
}

func TestNormalizePDFFailuresAreExtractionErrors(t *testing.T) {
	cases := map[string]*Normalizer{
		"fetch":  NewNormalizer(&blobFake{err: errors.New("no such key")}, &pdfTextFake{}, &rasterizerFake{}),
		"decode": NewNormalizer(&blobFake{}, &pdfTextFake{err: errors.New("malformed xref")}, &rasterizerFake{}),
		"render": NewNormalizer(&blobFake{}, &pdfTextFake{}, &rasterizerFake{err: errors.New("mupdf")}),
		"empty":  NewNormalizer(&blobFake{}, &pdfTextFake{}, &rasterizerFake{pages: 0}),
	}
	for name, n := range cases {
		_, err := n.Normalize(context.Background(), fileDoc("x.pdf"))
		if !domain.IsKind(err, domain.ErrExtraction) {
			t.Fatalf("%s: expected extraction error, got %v", name, err)
		}
	}
}

func TestNormalizeImageMIMEResolution(t *testing.T) {
	cases := []struct {
		name     string
		declared string
		want     string
	}{
		{name: "photo.jpg", declared: "image/webp", want: "image/webp"},
		{name: "photo.jpg", declared: "application/octet-stream", want: "image/jpeg"},
		{name: "photo.png", declared: "", want: "image/png"},
		{name: "photo.unknownext", declared: "", want: DefaultImageMIME},
		{name: "photo", declared: "IMAGE/GIF; charset=binary", want: "image/gif"},
	}
	for _, tc := range cases {
		n := NewNormalizer(&blobFake{blob: ports.Blob{Data: []byte{1}, ContentType: tc.declared}}, &pdfTextFake{}, &rasterizerFake{})
		payload, err := n.Normalize(context.Background(), fileDoc(tc.name))
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if payload.Source != domain.SourceImage || len(payload.Images) != 1 {
			t.Fatalf("%s: unexpected payload %+v", tc.name, payload)
		}
		if got := payload.Images[0].MimeType; got != tc.want {
			t.Fatalf("%s (%q): got %q, want %q", tc.name, tc.declared, got, tc.want)
		}
	}
}
