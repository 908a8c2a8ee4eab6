package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zombor/walkingpad-tracker/internal/imaging"
	"github.com/zombor/walkingpad-tracker/internal/scanning"
	"github.com/zombor/walkingpad-tracker/internal/storage"
)

// ErrEmptyImage is returned when an upload carries no bytes
var ErrEmptyImage = errors.New("no image data")

// ErrMissingImageURL is returned when analyze is called without an address
var ErrMissingImageURL = errors.New("imageUrl is required")

// ErrForeignImageURL is returned when analyze is called with a URL the blob
// store did not issue
var ErrForeignImageURL = errors.New("imageUrl is not a stored capture")

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// UploadResult is the body returned by the upload endpoint
type UploadResult struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Service stores captures and runs extraction on them
type Service struct {
	store      storage.BlobStore
	reader     storage.BlobReader
	analyzer   scanning.Analyzer
	timeSource TimeSource
}

// NewService creates a new Service with the default time source. reader may
// be nil when the blob store serves its own URLs.
func NewService(store storage.BlobStore, reader storage.BlobReader, analyzer scanning.Analyzer) *Service {
	return NewServiceWithDeps(store, reader, analyzer, &defaultTimeSource{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(store storage.BlobStore, reader storage.BlobReader, analyzer scanning.Analyzer, timeSrc TimeSource) *Service {
	return &Service{
		store:      store,
		reader:     reader,
		analyzer:   analyzer,
		timeSource: timeSrc,
	}
}

// captureFilename names a capture after its UTC upload second. Two uploads
// in the same second share a name and the later one wins.
func captureFilename(now time.Time) string {
	return "capture_" + now.UTC().Format("20060102_150405") + ".png"
}

// Upload stores a PNG capture and returns its public address
func (s *Service) Upload(ctx context.Context, data []byte) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	name := captureFilename(s.timeSource.Now())
	url, err := s.store.Put(ctx, name, data, imaging.ContentTypePNG)
	if err != nil {
		return nil, fmt.Errorf("storing capture: %w", err)
	}

	slog.Info("Stored capture", "filename", name, "size", len(data))
	return &UploadResult{Filename: name, URL: url}, nil
}

// Analyze asks the vision model about the capture at imageURL and returns the
// raw answer. Only URLs issued by the blob store are accepted. When the store
// is local the bytes are read from disk and the URL is never fetched.
func (s *Service) Analyze(ctx context.Context, imageURL string) (string, error) {
	if imageURL == "" {
		return "", ErrMissingImageURL
	}

	name, err := s.store.Name(imageURL)
	if err != nil {
		slog.Warn("Refusing to analyze foreign image URL", "image_url", imageURL)
		return "", fmt.Errorf("%w: %v", ErrForeignImageURL, err)
	}

	img := scanning.Image{URL: imageURL}
	if s.reader != nil {
		data, err := s.reader.Get(name)
		if err != nil {
			return "", fmt.Errorf("getting capture: %w", err)
		}
		img.Data = data
		img.ContentType = imaging.ContentTypePNG
	}

	text, err := s.analyzer.Analyze(ctx, img)
	if err != nil {
		slog.Error("Failed to analyze capture", "image_url", imageURL, "error", err)
		return "", fmt.Errorf("analyzing image: %w", err)
	}
	return text, nil
}

// GetCapture returns a stored capture's bytes
func (s *Service) GetCapture(name string) ([]byte, error) {
	if s.reader == nil {
		return nil, storage.ErrNotFound
	}
	data, err := s.reader.Get(name)
	if err != nil {
		return nil, fmt.Errorf("getting capture: %w", err)
	}
	return data, nil
}
