package tabular

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal"

	"github.com/xuri/excelize/v2"
)

// Supported file formats
const (
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
	FormatXLSX = "xlsx"
)

const utf8BOM = "\uFEFF"

// FormatForPath picks a format from the file extension. Unknown extensions
// are read as comma separated text.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return FormatXLSX
	case ".tsv", ".tab":
		return FormatTSV
	default:
		return FormatCSV
	}
}

// DataReader loads CSV, TSV and Excel files into tables
type DataReader struct {
	logger *internal.Logger
}

// NewDataReader creates a new data reader that handles both Excel and delimited files
func NewDataReader(logger *internal.Logger) *DataReader {
	return &DataReader{logger: logger}
}

// Load reads the file at path. Row order and every declared column are
// preserved; no schema validation happens here.
func (r *DataReader) Load(ctx context.Context, path string) (*experiment.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fileType := FormatForPath(path)
	r.logger.Info("Loading %s data from %s", fileType, path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, core.NewIOError(path, err)
	}
	if info.IsDir() {
		return nil, core.NewIOError(path, errors.New("is a directory"))
	}

	start := time.Now()
	var rows [][]string
	switch fileType {
	case FormatXLSX:
		rows, err = r.readExcelRows(path)
	case FormatTSV:
		rows, err = r.readDelimitedRows(path, '\t')
	default:
		rows, err = r.readDelimitedRows(path, ',')
	}
	if err != nil {
		r.logger.Error("Failed to load %s: %v", path, err)
		return nil, err
	}

	table, err := buildTable(rows)
	if err != nil {
		return nil, core.NewParseError(path, err)
	}

	r.logger.Info("Loaded %d rows (%d columns) in %.2fms", table.Len(), len(table.Columns()),
		float64(time.Since(start).Nanoseconds())/1e6)
	return table, nil
}

// readDelimitedRows reads every record; ragged records are a parse error
func (r *DataReader) readDelimitedRows(path string, delimiter rune) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, core.NewIOError(path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = delimiter

	rows, err := reader.ReadAll()
	if err != nil {
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, core.NewParseError(path, err)
		}
		return nil, core.NewIOError(path, err)
	}
	return rows, nil
}

// readExcelRows reads the first worksheet
func (r *DataReader) readExcelRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, core.NewParseError(path, fmt.Errorf("failed to open Excel file: %w", err))
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, core.NewParseError(path, errors.New("workbook has no sheets"))
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, core.NewParseError(path, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err))
	}
	r.logger.Debug("Read sheet %s (%d rows)", sheets[0], len(rows))
	return rows, nil
}

// buildTable turns raw records into a table, trimming cells the way
// spreadsheet exports tend to need
func buildTable(rows [][]string) (*experiment.Table, error) {
	if len(rows) == 0 {
		return nil, errors.New("missing header row")
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		header[i] = strings.TrimSpace(h)
		if header[i] == "" {
			return nil, fmt.Errorf("header column %d is blank", i+1)
		}
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = strings.TrimSpace(cell)
		}
		data = append(data, cells)
	}

	return experiment.NewTable(header, data)
}
