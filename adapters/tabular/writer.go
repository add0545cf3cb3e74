package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal"

	"github.com/xuri/excelize/v2"
)

const snapshotSheet = "Sheet1"

// SnapshotWriter saves tables as flat files
type SnapshotWriter struct {
	format string
	logger *internal.Logger
	now    func() time.Time
}

// NewSnapshotWriter creates a writer whose default format applies when the
// target filename carries no recognised extension
func NewSnapshotWriter(format string, logger *internal.Logger) *SnapshotWriter {
	if format == "" {
		format = FormatCSV
	}
	return &SnapshotWriter{format: strings.ToLower(format), logger: logger, now: time.Now}
}

// DefaultFilename returns processed_data_<YYYYMMDD_HHMMSS>.<ext> for t
func DefaultFilename(t time.Time, format string) string {
	return experiment.DefaultSnapshotName(t) + "." + format
}

// resolve picks the output format and final filename
func (w *SnapshotWriter) resolve(filename string) (string, string) {
	if filename == "" {
		return w.format, DefaultFilename(w.now(), w.format)
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, filename
	case ".tsv", ".tab":
		return FormatTSV, filename
	case ".xlsx":
		return FormatXLSX, filename
	}
	return w.format, filename + "." + w.format
}

// Save writes table into dir, creating dir if needed, and returns the path.
// An existing file is never overwritten.
func (w *SnapshotWriter) Save(ctx context.Context, table *experiment.Table, dir, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	format, name := w.resolve(filename)
	outputPath := filepath.Join(dir, name)
	w.logger.Info("Saving processed data to %s", outputPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", core.NewIOError(dir, fmt.Errorf("failed to create output directory: %w", err))
	}

	file, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			err = fmt.Errorf("snapshot already exists: %w", err)
		}
		w.logger.Error("Failed to save processed data: %v", err)
		return "", core.NewIOError(outputPath, err)
	}

	switch format {
	case FormatXLSX:
		err = writeExcel(file, table)
	case FormatTSV:
		err = writeDelimited(file, table, '\t')
	default:
		err = writeDelimited(file, table, ',')
	}
	if cerr := file.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close file: %w", cerr)
	}
	if err != nil {
		os.Remove(outputPath)
		w.logger.Error("Failed to save processed data: %v", err)
		return "", core.NewIOError(outputPath, err)
	}

	w.logger.Info("Saved %d rows to %s", table.Len(), outputPath)
	return outputPath, nil
}

func writeDelimited(file *os.File, table *experiment.Table, delimiter rune) error {
	writer := csv.NewWriter(file)
	writer.Comma = delimiter

	if err := writer.Write(table.Columns()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := 0; i < table.Len(); i++ {
		if err := writer.Write(table.Row(i)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Sync()
}

func writeExcel(file *os.File, table *experiment.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(snapshotSheet)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	writeRow := func(rowNum int, values []string) error {
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		return sw.SetRow(cell, cells)
	}

	if err := writeRow(1, table.Columns()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := 0; i < table.Len(); i++ {
		if err := writeRow(i+2, table.Row(i)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(file); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return file.Sync()
}
