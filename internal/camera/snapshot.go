package camera

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zombor/walkingpad-tracker/internal/imaging"
)

// maxFrameSize bounds a single snapshot
const maxFrameSize = 50 << 20

// HTTPCamera reads frames from a network camera's still-snapshot endpoint
// (for example an ESP32-CAM "/capture" URL)
type HTTPCamera struct {
	url    string
	client *http.Client
}

// NewHTTPCamera creates a camera for the given snapshot URL
func NewHTTPCamera(url string) *HTTPCamera {
	return &HTTPCamera{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Open probes the snapshot endpoint once so device errors surface at start
func (h *HTTPCamera) Open(ctx context.Context, c Constraints) (Stream, error) {
	s := &httpStream{camera: h}
	img, err := s.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.resolution = img.Bounds().Size()
	logNegotiated(h.url, s.resolution, c)
	return s, nil
}

type httpStream struct {
	camera     *HTTPCamera
	resolution image.Point

	mu     sync.Mutex
	closed bool
}

func (s *httpStream) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	return s.fetch(ctx)
}

func (s *httpStream) fetch(ctx context.Context) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.camera.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.camera.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot endpoint returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameSize))
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	return imaging.Decode(data, resp.Header.Get("Content-Type"))
}

func (s *httpStream) Resolution() image.Point {
	return s.resolution
}

func (s *httpStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// FileCamera re-reads an image file on every frame, for capture tools that
// keep overwriting a single still (libcamera-still, fswebcam, ...)
type FileCamera struct {
	path string
}

// NewFileCamera creates a camera that reads frames from path
func NewFileCamera(path string) *FileCamera {
	return &FileCamera{path: path}
}

// Open checks that the file holds a decodable image
func (f *FileCamera) Open(ctx context.Context, c Constraints) (Stream, error) {
	s := &fileStream{path: f.path}
	img, err := s.read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	s.resolution = img.Bounds().Size()
	logNegotiated(f.path, s.resolution, c)
	return s, nil
}

type fileStream struct {
	path       string
	resolution image.Point

	mu     sync.Mutex
	closed bool
}

func (s *fileStream) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.read()
}

func (s *fileStream) read() (image.Image, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	return imaging.Decode(data, imaging.ContentTypeForExt(filepath.Ext(s.path)))
}

func (s *fileStream) Resolution() image.Point {
	return s.resolution
}

func (s *fileStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func logNegotiated(source string, native image.Point, c Constraints) {
	if meetsPreferred(native, c) {
		slog.Info("Camera opened", "source", source, "width", native.X, "height", native.Y)
		return
	}
	slog.Info("Camera opened below preferred resolution",
		"source", source,
		"width", native.X,
		"height", native.Y,
		"preferred_width", c.Width,
		"preferred_height", c.Height,
	)
}
