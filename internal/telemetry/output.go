package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// OutputManager appends stats rows to telemetry.csv under the output
// directory. A nil manager is valid and does nothing, so callers don't guard
// every write.
type OutputManager struct {
	dir  string
	file *os.File

	headerWritten bool
}

// NewOutputManager initializes the output directory. Returns nil when dir is
// empty (telemetry disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "telemetry.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating telemetry.csv: %w", err)
	}
	return &OutputManager{dir: dir, file: f}, nil
}

// Write appends one stats row; the first write emits the CSV header.
func (om *OutputManager) Write(stats SampleStats) error {
	if om == nil {
		return nil
	}
	records := []SampleStats{stats}
	if !om.headerWritten {
		if err := gocsv.Marshal(records, om.file); err != nil {
			return fmt.Errorf("writing telemetry: %w", err)
		}
		om.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, om.file); err != nil {
		return fmt.Errorf("writing telemetry: %w", err)
	}
	return nil
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes the output file.
func (om *OutputManager) Close() error {
	if om == nil || om.file == nil {
		return nil
	}
	return om.file.Close()
}
