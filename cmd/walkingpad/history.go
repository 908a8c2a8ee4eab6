package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/zombor/walkingpad-tracker/internal/history"
	"github.com/zombor/walkingpad-tracker/internal/reading"
)

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded readings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, kv, err := openHistory(opts)
			if err != nil {
				return err
			}
			defer kv.Close()

			entries := store.Entries()
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No readings yet.")
				return nil
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			return writeTable(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "show at most this many readings (0 = all)")

	return cmd
}

func writeTable(w io.Writer, entries []reading.CapturedReading) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CAPTURED\tTIME\tCAL\tSPEED\tSTEPS\tDIST")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CapturedAt.Local().Format("2006-01-02 15:04:05"),
			e.Time, e.Calories, e.Speed, e.Steps, e.Distance)
	}
	return tw.Flush()
}

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show capture counters and success rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, kv, err := openHistory(opts)
			if err != nil {
				return err
			}
			defer kv.Close()

			writeStats(cmd.OutOrStdout(), store.Stats())
			return nil
		},
	}
}

func writeStats(w io.Writer, stats history.Stats) {
	fmt.Fprintf(w, "Total captures:      %d\n", stats.TotalCaptures)
	fmt.Fprintf(w, "Successful captures: %d\n", stats.SuccessfulCaptures)
	fmt.Fprintf(w, "Success rate:        %d%%\n", stats.Rate())
}

func newLastCmd(opts *options) *cobra.Command {
	var copyToClipboard bool

	cmd := &cobra.Command{
		Use:   "last",
		Short: "Print the most recent reading",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, kv, err := openHistory(opts)
			if err != nil {
				return err
			}
			defer kv.Close()

			last, ok := store.Latest()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No readings yet.")
				return nil
			}

			summary := last.Summary()
			fmt.Fprintln(cmd.OutOrStdout(), summary)
			if copyToClipboard {
				if err := clipboard.WriteAll(summary); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not copy to clipboard: %v\n", err)
				} else {
					fmt.Fprintln(cmd.ErrOrStderr(), "Copied to clipboard!")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "copy the reading to the clipboard")

	return cmd
}

func newClearCmd(opts *options) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all readings and reset the counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Are you sure you want to clear all history?") {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}

			store, kv, err := openHistory(opts)
			if err != nil {
				return err
			}
			defer kv.Close()

			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the history as JSON, YAML or Parquet",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, kv, err := openHistory(opts)
			if err != nil {
				return err
			}
			defer kv.Close()

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("creating %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if err := history.Export(w, store.Entries(), format); err != nil {
				return err
			}
			if output != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "History written to %s\n", output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", history.FormatJSON, "json, yaml or parquet")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")

	return cmd
}
