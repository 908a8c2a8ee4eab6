package camera

import (
	"context"
	"errors"
	"image"
)

// ErrUnavailable is returned when no camera can be opened
var ErrUnavailable = errors.New("camera unavailable")

// ErrClosed is returned by Frame after the stream was closed
var ErrClosed = errors.New("camera stream closed")

// Constraints describe the preferred stream. Cameras that cannot meet the
// preferred resolution open at the best size they support.
type Constraints struct {
	FacingMode string
	Width      int
	Height     int
}

// DefaultConstraints asks for the rear camera at 1920x1080
var DefaultConstraints = Constraints{
	FacingMode: "environment",
	Width:      1920,
	Height:     1080,
}

// Camera opens video streams
type Camera interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an open camera stream
type Stream interface {
	// Frame snapshots the current frame at the stream's native resolution
	Frame(ctx context.Context) (image.Image, error)

	// Resolution reports the negotiated frame size
	Resolution() image.Point

	// Close releases the device
	Close() error
}

// meetsPreferred reports whether the device's native frame size satisfies
// the preferred size
func meetsPreferred(native image.Point, c Constraints) bool {
	return native.X >= c.Width && native.Y >= c.Height
}
