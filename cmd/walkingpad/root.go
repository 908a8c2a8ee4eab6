package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zombor/walkingpad-tracker/internal/backend"
	"github.com/zombor/walkingpad-tracker/internal/camera"
	"github.com/zombor/walkingpad-tracker/internal/controller"
	"github.com/zombor/walkingpad-tracker/internal/history"
	"github.com/zombor/walkingpad-tracker/internal/status"
)

// options are the flags shared by every command
type options struct {
	server   string
	store    string
	dbPath   string
	camera   string
	interval time.Duration
	timeout  time.Duration
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "walkingpad",
		Short: "Read walking pad displays with a vision model and keep a history",
		Long: `walkingpad photographs a treadmill LED display, sends the photo to the
walkingpad server for extraction and records the readings locally.

The history lives in a local database so it survives restarts.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.server, "server", envOr("WALKINGPAD_SERVER", "http://localhost:8080"), "walkingpad server base URL")
	flags.StringVar(&opts.store, "store", envOr("WALKINGPAD_STORE", "bolt"), "history backend: bolt or sqlite")
	flags.StringVar(&opts.dbPath, "db", envOr("WALKINGPAD_DB", "walkingpad.db"), "history database path")
	flags.StringVar(&opts.camera, "camera", os.Getenv("WALKINGPAD_CAMERA"), "snapshot URL of an IP camera, or path to an image file")
	flags.DurationVar(&opts.interval, "interval", controller.DefaultInterval, "auto-capture interval")
	flags.DurationVar(&opts.timeout, "timeout", 0, "request timeout for the server (0 = none)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newRunCmd(opts),
		newCaptureCmd(opts),
		newUploadCmd(opts),
		newHistoryCmd(opts),
		newStatsCmd(opts),
		newLastCmd(opts),
		newClearCmd(opts),
		newExportCmd(opts),
	)

	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// openKV opens the configured history backend
func openKV(opts *options) (history.KV, error) {
	switch opts.store {
	case "bolt":
		return history.NewBoltKV(opts.dbPath)
	case "sqlite":
		return history.NewSQLiteKV(opts.dbPath)
	default:
		return nil, fmt.Errorf("invalid store %q: must be bolt or sqlite", opts.store)
	}
}

// openHistory opens and loads the history. The caller closes the KV.
func openHistory(opts *options) (*history.Store, history.KV, error) {
	kv, err := openKV(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("opening history: %w", err)
	}
	store := history.NewStore(kv)
	if err := store.Load(); err != nil {
		slog.Warn("Starting with empty history", "error", err)
	}
	return store, kv, nil
}

// unavailableCamera is used when no --camera is configured
type unavailableCamera struct{}

func (unavailableCamera) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	return nil, fmt.Errorf("%w: set --camera to a snapshot URL or image file", camera.ErrUnavailable)
}

// newCamera picks a frame source from the --camera value
func newCamera(source string) camera.Camera {
	switch {
	case source == "":
		return unavailableCamera{}
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return camera.NewHTTPCamera(source)
	default:
		return camera.NewFileCamera(source)
	}
}

// session is a fully wired capture controller
type session struct {
	store    *history.Store
	kv       history.KV
	reporter *status.Reporter
	ctrl     *controller.Controller
}

func openSession(opts *options) (*session, error) {
	store, kv, err := openHistory(opts)
	if err != nil {
		return nil, err
	}

	client := backend.New(opts.server, opts.timeout)
	reporter := status.NewReporter(store.Stats())
	if last, ok := store.Latest(); ok {
		reporter.SetLast(&last)
	}

	ctrl := controller.New(controller.Config{
		Camera:   newCamera(opts.camera),
		Uploader: client,
		Analyzer: client,
		History:  store,
		Reporter: reporter,
		Interval: opts.interval,
	})

	return &session{store: store, kv: kv, reporter: reporter, ctrl: ctrl}, nil
}

func (s *session) Close() {
	s.ctrl.Close()
	if err := s.kv.Close(); err != nil {
		slog.Warn("Failed to close history", "error", err)
	}
}

// confirm asks a yes/no question on in and reports whether the answer was yes
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	var answer string
	if _, err := fmt.Fscanln(in, &answer); err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
