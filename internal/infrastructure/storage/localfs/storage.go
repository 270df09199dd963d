package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/kirillkom/doc-triage/internal/core/domain"
	"github.com/kirillkom/doc-triage/internal/core/ports"
)

// contentTypeSuffix names the sidecar file holding the declared content type.
const contentTypeSuffix = ".content-type"

type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: basePath}, nil
}

// Store writes data under folder/filename and returns that relative locator.
func (s *Storage) Store(_ context.Context, folder, filename, contentType string, data io.Reader) (string, error) {
	locator, err := cleanLocator(path.Join(folder, filename))
	if err != nil {
		return "", err
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(locator))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if contentType != "" {
		if err := os.WriteFile(full+contentTypeSuffix, []byte(contentType), 0o644); err != nil {
			return "", fmt.Errorf("write content type: %w", err)
		}
	}
	return locator, nil
}

func (s *Storage) Fetch(_ context.Context, locator string) (ports.Blob, error) {
	clean, err := cleanLocator(locator)
	if err != nil {
		return ports.Blob{}, err
	}
	full := filepath.Join(s.basePath, filepath.FromSlash(clean))
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ports.Blob{}, domain.WrapError(domain.ErrNotFound, "open file", err)
		}
		return ports.Blob{}, fmt.Errorf("open file: %w", err)
	}

	blob := ports.Blob{Data: data}
	if ct, err := os.ReadFile(full + contentTypeSuffix); err == nil {
		blob.ContentType = strings.TrimSpace(string(ct))
	}
	return blob, nil
}

func cleanLocator(locator string) (string, error) {
	clean := path.Clean("/" + strings.ReplaceAll(locator, "\\", "/"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "" || clean == "." {
		return "", domain.WrapError(domain.ErrInvalidInput, "resolve locator", fmt.Errorf("empty locator %q", locator))
	}
	return clean, nil
}
