package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/zombor/walkingpad-tracker/internal/console"
	"github.com/zombor/walkingpad-tracker/internal/imaging"
)

func newRunCmd(opts *options) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the interactive capture console",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The console owns the terminal, so logs go to a file or nowhere
			var w io.Writer = io.Discard
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
				if err != nil {
					return fmt.Errorf("opening log file: %w", err)
				}
				defer f.Close()
				w = f
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(w, nil)))

			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			return console.Run(cmd.Context(), s.ctrl, s.store, s.reporter)
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "", "write logs to this file while the console runs")

	return cmd
}

func newCaptureCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "capture",
		Short: "Take one picture with the camera and record the reading",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.ctrl.StartCamera(cmd.Context()); err != nil {
				return err
			}
			err = s.ctrl.CaptureFrame(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), s.reporter.Snapshot().Status.Message)
			return err
		},
	}
}

func newUploadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Analyze an existing photo (JPEG, PNG, GIF, HEIC/HEIF or PDF)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			s, err := openSession(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			err = s.ctrl.HandleManualUpload(cmd.Context(), data, imaging.ContentTypeForExt(filepath.Ext(path)))
			fmt.Fprintln(cmd.OutOrStdout(), s.reporter.Snapshot().Status.Message)
			return err
		},
	}
}
