package history

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"github.com/zombor/walkingpad-tracker/internal/reading"
)

// Export formats
const (
	FormatJSON    = "json"
	FormatYAML    = "yaml"
	FormatParquet = "parquet"
)

// ExportRow is the flattened layout written by Export
type ExportRow struct {
	CapturedAt string `json:"captured_at" yaml:"captured_at" parquet:"captured_at"`
	Time       string `json:"time" yaml:"time" parquet:"time"`
	Calories   string `json:"calories" yaml:"calories" parquet:"calories"`
	Speed      string `json:"speed" yaml:"speed" parquet:"speed"`
	Steps      string `json:"steps" yaml:"steps" parquet:"steps"`
	Distance   string `json:"distance" yaml:"distance" parquet:"distance"`
}

// Export writes entries to w in the given format
func Export(w io.Writer, entries []reading.CapturedReading, format string) error {
	rows := make([]ExportRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, ExportRow{
			CapturedAt: e.CapturedAt.UTC().Format(time.RFC3339),
			Time:       e.Time,
			Calories:   e.Calories,
			Speed:      e.Speed,
			Steps:      e.Steps,
			Distance:   e.Distance,
		})
	}

	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("closing yaml encoder: %w", err)
		}
	case FormatParquet:
		pw := parquet.NewGenericWriter[ExportRow](w)
		if _, err := pw.Write(rows); err != nil {
			return fmt.Errorf("writing parquet rows: %w", err)
		}
		if err := pw.Close(); err != nil {
			return fmt.Errorf("closing parquet writer: %w", err)
		}
	default:
		return fmt.Errorf("unsupported export format: %s", format)
	}
	return nil
}
