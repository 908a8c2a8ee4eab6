package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a blob does not exist
var ErrNotFound = errors.New("blob not found")

// ErrInvalidName is returned for names that would escape the store
var ErrInvalidName = errors.New("invalid blob name")

// ErrForeignURL is returned for URLs this store did not issue
var ErrForeignURL = errors.New("url does not belong to this store")

// BlobStore defines the interface for image storage operations
type BlobStore interface {
	// Put stores data under name and returns a publicly fetchable URL
	Put(ctx context.Context, name string, data []byte, contentType string) (string, error)
	// Name returns the blob name behind a URL returned by Put, or
	// ErrForeignURL for any other URL
	Name(rawURL string) (string, error)
}

// BlobReader is implemented by stores whose blobs this server serves itself
type BlobReader interface {
	// Get retrieves a blob by name
	Get(name string) ([]byte, error)
}

// LocalStorage implements BlobStore using the local filesystem. Blobs are
// served back under publicURL + "/captures/".
type LocalStorage struct {
	basePath  string
	publicURL string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath, publicURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath:  basePath,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Put saves a blob to local storage
func (l *LocalStorage) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(l.basePath, clean), data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return l.publicURL + "/captures/" + clean, nil
}

// Name maps a URL under publicURL + "/captures/" back to its blob name
func (l *LocalStorage) Name(rawURL string) (string, error) {
	return nameUnder(rawURL, l.publicURL+"/captures/")
}

// Get retrieves a blob from local storage
func (l *LocalStorage) Get(name string) ([]byte, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(l.basePath, clean))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
	}
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return data, nil
}

// nameUnder returns the single path segment that follows prefix in rawURL
func nameUnder(rawURL, prefix string) (string, error) {
	rest, ok := strings.CutPrefix(rawURL, prefix)
	if !ok || rest == "" || strings.ContainsAny(rest, "?#%/\\") {
		return "", fmt.Errorf("%w: %q", ErrForeignURL, rawURL)
	}
	name, err := cleanName(rest)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrForeignURL, rawURL)
	}
	return name, nil
}

// cleanName rejects names that would escape the storage directory
func cleanName(name string) (string, error) {
	base := filepath.Base(name)
	if base != name || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return base, nil
}
