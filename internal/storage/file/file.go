package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/polybot/polybot/internal/storage"
)

// Provider implements a file-based photo storage
type Provider struct {
	path string
}

// New returns a new Provider instance storing files below path
func New(path string) (*Provider, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}

	return &Provider{
		path,
	}, nil
}

// Get returns the data stored under key
func (p *Provider) Get(ctx context.Context, key string) ([]byte, error) {
	filename, err := p.filename(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	return data, nil
}

// Put stores data under key, creating directories as needed
func (p *Provider) Put(ctx context.Context, key string, data []byte) error {
	filename, err := p.filename(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0644)
}

// Keys may not escape the storage directory
func (p *Provider) filename(key string) (string, error) {
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || path.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidKey, key)
	}

	return filepath.Join(p.path, filepath.FromSlash(cleaned)), nil
}
