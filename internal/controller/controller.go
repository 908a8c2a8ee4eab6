// Package controller runs the capture pipeline: camera lifecycle, the
// auto-capture schedule and the upload, analyze, parse, record cycle.
package controller

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zombor/walkingpad-tracker/internal/camera"
	"github.com/zombor/walkingpad-tracker/internal/history"
	"github.com/zombor/walkingpad-tracker/internal/imaging"
	"github.com/zombor/walkingpad-tracker/internal/reading"
	"github.com/zombor/walkingpad-tracker/internal/status"
)

// DefaultInterval is the auto-capture period
const DefaultInterval = 20 * time.Second

// Uploader stores a PNG capture and returns its retrievable URL
type Uploader interface {
	Upload(ctx context.Context, png []byte) (string, error)
}

// Analyzer returns the model's raw answer for an image URL
type Analyzer interface {
	Analyze(ctx context.Context, imageURL string) (string, error)
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Config wires a Controller
type Config struct {
	Camera      camera.Camera
	Uploader    Uploader
	Analyzer    Analyzer
	History     *history.Store
	Reporter    *status.Reporter
	Interval    time.Duration
	Constraints camera.Constraints
	TimeSource  TimeSource
}

// Session is the camera state the UI renders
type Session struct {
	Active      bool
	AutoCapture bool
}

// Controller owns the camera session and serializes capture cycles
type Controller struct {
	camera      camera.Camera
	uploader    Uploader
	analyzer    Analyzer
	history     *history.Store
	reporter    *status.Reporter
	interval    time.Duration
	constraints camera.Constraints
	timeSource  TimeSource

	// mu guards the fields below. The reporter is never called with mu held:
	// its subscribers may call back into Session.
	mu           sync.Mutex
	stream       camera.Stream
	stopSchedule context.CancelFunc
	closed       bool

	busy atomic.Bool
	wg   sync.WaitGroup
}

// New creates a Controller. Zero Interval, Constraints and TimeSource take
// their defaults; a nil Reporter is created from the history counters.
func New(cfg Config) *Controller {
	c := &Controller{
		camera:      cfg.Camera,
		uploader:    cfg.Uploader,
		analyzer:    cfg.Analyzer,
		history:     cfg.History,
		reporter:    cfg.Reporter,
		interval:    cfg.Interval,
		constraints: cfg.Constraints,
		timeSource:  cfg.TimeSource,
	}
	if c.interval <= 0 {
		c.interval = DefaultInterval
	}
	if c.constraints == (camera.Constraints{}) {
		c.constraints = camera.DefaultConstraints
	}
	if c.timeSource == nil {
		c.timeSource = &defaultTimeSource{}
	}
	if c.reporter == nil {
		c.reporter = status.NewReporter(c.history.Stats())
	}
	return c
}

// Reporter returns the status reporter the controller writes to
func (c *Controller) Reporter() *status.Reporter {
	return c.reporter
}

// Session returns the current camera state
func (c *Controller) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Session{
		Active:      c.stream != nil,
		AutoCapture: c.stopSchedule != nil,
	}
}

// StartCamera opens the camera. Starting an active camera is a no-op. The
// lock is not held while the device opens, so Session and StopCamera stay
// responsive; if a concurrent start wins, the extra stream is closed.
func (c *Controller) StartCamera(ctx context.Context) error {
	if c.Session().Active {
		return nil
	}

	c.reporter.Update("Starting camera...", status.KindInfo)
	stream, err := c.camera.Open(ctx, c.constraints)
	if err != nil {
		derr := &DeviceError{Err: err}
		slog.Error("Failed to start camera", "error", err)
		c.reporter.Update("Error: "+derr.Error(), status.KindError)
		return derr
	}

	c.mu.Lock()
	if c.stream != nil || c.closed {
		closed := c.closed
		c.mu.Unlock()
		if err := stream.Close(); err != nil {
			slog.Warn("Failed to close camera", "error", err)
		}
		if closed {
			return ErrClosed
		}
		return nil
	}
	c.stream = stream
	c.mu.Unlock()

	res := stream.Resolution()
	slog.Info("Camera started", "width", res.X, "height", res.Y)
	c.reporter.Update("Camera started. Ready to capture.", status.KindSuccess)
	return nil
}

// StopCamera releases the stream and cancels auto-capture. A cycle already
// in flight runs to completion.
func (c *Controller) StopCamera() {
	c.mu.Lock()
	stream := c.stream
	stop := c.stopSchedule
	c.stream = nil
	c.stopSchedule = nil
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
	if stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		slog.Warn("Failed to close camera", "error", err)
	}
	c.reporter.Update("Camera stopped.", status.KindInfo)
}

// ToggleAutoCapture flips auto-capture and returns the new state. Turning it
// on runs one cycle immediately and then one per interval. ctx bounds the
// cycles the schedule starts, not the schedule itself.
func (c *Controller) ToggleAutoCapture(ctx context.Context) (bool, error) {
	c.mu.Lock()
	if c.stream == nil {
		c.mu.Unlock()
		c.reporter.Update("Start the camera first.", status.KindInfo)
		return false, ErrCameraInactive
	}

	if c.stopSchedule != nil {
		stop := c.stopSchedule
		c.stopSchedule = nil
		c.mu.Unlock()
		stop()
		c.reporter.Update("Auto-capture disabled.", status.KindInfo)
		return false, nil
	}

	if c.closed {
		c.mu.Unlock()
		return false, ErrClosed
	}

	schedule, stop := context.WithCancel(context.Background())
	c.stopSchedule = stop
	c.wg.Add(1)
	c.mu.Unlock()

	c.reporter.Update(fmt.Sprintf("Auto-capture enabled. Capturing every %s.", c.interval), status.KindSuccess)
	go c.autoCapture(schedule, ctx)
	return true, nil
}

func (c *Controller) autoCapture(schedule, ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.dispatch(ctx)
	for {
		select {
		case <-schedule.Done():
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if schedule.Err() != nil {
				return
			}
			c.dispatch(ctx)
		}
	}
}

// dispatch runs a scheduled capture in its own goroutine so a slow cycle
// causes later ticks to be dropped by the busy guard
func (c *Controller) dispatch(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.captureFrame(ctx, false); errors.Is(err, ErrBusy) {
			slog.Info("Skipped scheduled capture, previous cycle still running")
		}
	}()
}

// CaptureFrame snapshots the active camera and runs one cycle. It is a
// no-op when the camera is not active.
func (c *Controller) CaptureFrame(ctx context.Context) error {
	if !c.track() {
		return ErrClosed
	}
	defer c.wg.Done()
	return c.captureFrame(ctx, true)
}

// track registers a caller-driven cycle with the wait group so Close waits
// for it. It fails once Close has begun.
func (c *Controller) track() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.wg.Add(1)
	return true
}

func (c *Controller) captureFrame(ctx context.Context, reportBusy bool) error {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return nil
	}

	if !c.acquire(reportBusy) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	c.reporter.Update("Capturing frame...", status.KindProcessing)
	capturedAt := c.timeSource.Now()
	img, err := stream.Frame(ctx)
	if err != nil {
		derr := &DeviceError{Err: err}
		slog.Error("Failed to capture frame", "error", err)
		c.reporter.Update("Error: "+derr.Error(), status.KindError)
		return derr
	}

	return c.runCycle(ctx, capturedAt, img)
}

// HandleManualUpload decodes a user-supplied image (JPEG, PNG, GIF,
// HEIC/HEIF or the first page of a PDF) and runs one cycle on it
func (c *Controller) HandleManualUpload(ctx context.Context, data []byte, contentType string) error {
	if !c.track() {
		return ErrClosed
	}
	defer c.wg.Done()

	if !c.acquire(true) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	c.reporter.Update("Loading uploaded image...", status.KindProcessing)
	capturedAt := c.timeSource.Now()
	img, err := imaging.Decode(data, contentType)
	if err != nil {
		slog.Error("Failed to decode upload", "content_type", contentType, "size", len(data), "error", err)
		c.reporter.Update("Error: "+err.Error(), status.KindError)
		return fmt.Errorf("decoding upload: %w", err)
	}

	return c.runCycle(ctx, capturedAt, img)
}

// ClearHistory drops every entry and resets the counters. Callers confirm
// with the user first.
func (c *Controller) ClearHistory() error {
	err := c.history.Clear()
	if err != nil {
		slog.Warn("Failed to clear persisted history", "error", err)
	}
	c.reporter.SetStats(c.history.Stats())
	c.reporter.SetLast(nil)
	c.reporter.Update("History cleared.", status.KindInfo)
	return err
}

// Wait blocks until the schedule and every running cycle have returned
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close stops the camera and waits for in-flight work, including cycles
// started through CaptureFrame and HandleManualUpload. Later triggers return
// ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.StopCamera()
	c.Wait()
}

func (c *Controller) acquire(reportBusy bool) bool {
	if c.busy.CompareAndSwap(false, true) {
		return true
	}
	if reportBusy {
		c.reporter.Update("Busy: a capture is already in progress.", status.KindInfo)
	}
	return false
}

// runCycle must be called with the busy flag held. The attempt is recorded
// exactly once whatever the outcome, and a panic is turned into an error
// status.
func (c *Controller) runCycle(ctx context.Context, capturedAt time.Time, img image.Image) (err error) {
	var captured *reading.CapturedReading

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Capture cycle panicked", "panic", r)
			err = fmt.Errorf("capture cycle panicked: %v", r)
			captured = nil
		}

		stats, perr := c.history.Record(captured)
		if perr != nil {
			slog.Warn("Failed to persist history", "error", perr)
		}
		c.reporter.SetStats(stats)

		var parseErr *ParseError
		switch {
		case captured != nil:
			c.reporter.SetLast(captured)
			c.reporter.Update("Captured: "+captured.Summary(), status.KindSuccess)
		case errors.As(err, &parseErr):
			c.reporter.Update("No data detected in image.", status.KindError)
		default:
			c.reporter.Update("Error: "+err.Error(), status.KindError)
		}
	}()

	png, err := imaging.EncodePNG(img)
	if err != nil {
		return err
	}

	c.reporter.Update("Uploading image...", status.KindProcessing)
	url, err := c.uploader.Upload(ctx, png)
	if err != nil {
		slog.Error("Upload failed", "error", err)
		return &TransportError{Op: "upload", Err: err}
	}

	c.reporter.Update("Analyzing image...", status.KindProcessing)
	text, err := c.analyzer.Analyze(ctx, url)
	if err != nil {
		slog.Error("Analysis failed", "image_url", url, "error", err)
		return &TransportError{Op: "analyze", Err: err}
	}

	fields, err := reading.Parse(text)
	if err != nil {
		slog.Info("No reading in model answer", "image_url", url, "response", text)
		return &ParseError{Response: text, Err: err}
	}

	captured = &reading.CapturedReading{CapturedAt: capturedAt, Fields: fields}
	slog.Info("Captured reading", "summary", fields.Summary())
	return nil
}
