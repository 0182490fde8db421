package labelstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type FilesystemProvider struct {
	dir string
}

func NewFilesystemProvider(dir string) (*FilesystemProvider, error) {
	if dir == "" {
		dir = "data/labels"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create label directory: %w", err)
	}
	return &FilesystemProvider{dir: dir}, nil
}

func (p *FilesystemProvider) Save(_ context.Context, key string, pdf []byte) (string, error) {
	path := filepath.Join(p.dir, filepath.Base(key))
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return "", fmt.Errorf("failed to write label %s: %w", key, err)
	}
	return path, nil
}

func (p *FilesystemProvider) Open(_ context.Context, key string) ([]byte, error) {
	pdf, err := os.ReadFile(filepath.Join(p.dir, filepath.Base(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read label %s: %w", key, err)
	}
	return pdf, nil
}

func (p *FilesystemProvider) Close() error {
	return nil
}
