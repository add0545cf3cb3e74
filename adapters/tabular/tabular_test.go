package tabular

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `user_id,timestamp,group,landing_page,converted
1,2023-01-01,control,old_page,0
2,2023-01-02,treatment,new_page,1
3,2023-01-03,control,old_page,0
4,2023-01-04,treatment,new_page,1
5,2023-01-05,control,new_page,0
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newReader() *DataReader {
	return NewDataReader(internal.NewNopLogger())
}

func TestLoad_CSV(t *testing.T) {
	path := writeFile(t, "ab_data.csv", sampleCSV)

	table, err := newReader().Load(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, 5, table.Len())
	assert.Equal(t, experiment.RequiredColumns, table.Columns())
	assert.Equal(t, []string{"5", "2023-01-05", "control", "new_page", "0"}, table.Row(4))
}

func TestLoad_PreservesOrderAndExtraColumns(t *testing.T) {
	path := writeFile(t, "ab.csv", "converted,country,user_id\n1,FR,b\n0,US,a\n")

	table, err := newReader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"converted", "country", "user_id"}, table.Columns())
	assert.Equal(t, "b", table.Cell(0, 2))
	assert.Equal(t, "a", table.Cell(1, 2))
}

func TestLoad_TSVAndBOM(t *testing.T) {
	path := writeFile(t, "ab.tsv", "\uFEFFuser_id\tgroup\n u1 \tcontrol\n")

	table, err := newReader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "group"}, table.Columns())
	assert.Equal(t, "u1", table.Cell(0, 0))
}

func TestLoad_HeaderOnly(t *testing.T) {
	path := writeFile(t, "empty.csv", "user_id,group\n")
	table, err := newReader().Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		isIO    bool
		isParse bool
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.csv") },
			isIO:    true,
			isParse: false,
		},
		{
			name:    "directory",
			path:    func(t *testing.T) string { return t.TempDir() },
			isIO:    true,
			isParse: false,
		},
		{
			name:    "empty file",
			path:    func(t *testing.T) string { return writeFile(t, "empty.csv", "") },
			isParse: true,
		},
		{
			name:    "ragged rows",
			path:    func(t *testing.T) string { return writeFile(t, "ragged.csv", "a,b\n1,2,3\n") },
			isParse: true,
		},
		{
			name:    "bare quote",
			path:    func(t *testing.T) string { return writeFile(t, "quote.csv", "a,b\n1,\"2\n") },
			isParse: true,
		},
		{
			name:    "duplicate header",
			path:    func(t *testing.T) string { return writeFile(t, "dup.csv", "a,a\n1,2\n") },
			isParse: true,
		},
		{
			name:    "not a workbook",
			path:    func(t *testing.T) string { return writeFile(t, "fake.xlsx", "plain text") },
			isParse: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := tt.path(t)
			_, err := newReader().Load(context.Background(), path)
			require.Error(t, err)
			assert.Equal(t, tt.isIO, core.IsIOError(err), "io kind: %v", err)
			assert.Equal(t, tt.isParse, core.IsParseError(err), "parse kind: %v", err)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newReader().Load(ctx, "whatever.csv")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSave_DefaultFilename(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "processed")
	table, err := experiment.NewTable([]string{"user_id", "converted"}, [][]string{{"u1", "1"}, {"u2", "0"}})
	require.NoError(t, err)

	writer := NewSnapshotWriter("csv", internal.NewNopLogger())
	writer.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	path, err := writer.Save(context.Background(), table, dir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "processed_data_20240506_070809.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "user_id,converted\nu1,1\nu2,0\n", string(data))
}

func TestSave_FilenameResolution(t *testing.T) {
	writer := NewSnapshotWriter("tsv", internal.NewNopLogger())

	format, name := writer.resolve("clean.xlsx")
	assert.Equal(t, FormatXLSX, format)
	assert.Equal(t, "clean.xlsx", name)

	format, name = writer.resolve("clean")
	assert.Equal(t, FormatTSV, format)
	assert.Equal(t, "clean.tsv", name)

	format, name = writer.resolve("clean.CSV")
	assert.Equal(t, FormatCSV, format)
	assert.Equal(t, "clean.CSV", name)
}

func TestSaveAndLoad_RoundTrip(t *testing.T) {
	for _, format := range []string{FormatCSV, FormatTSV, FormatXLSX} {
		t.Run(format, func(t *testing.T) {
			source := writeFile(t, "ab_data.csv", sampleCSV)
			reader := newReader()
			table, err := reader.Load(context.Background(), source)
			require.NoError(t, err)

			writer := NewSnapshotWriter(format, internal.NewNopLogger())
			path, err := writer.Save(context.Background(), table, t.TempDir(), "snapshot")
			require.NoError(t, err)
			assert.Equal(t, format, FormatForPath(path))

			reloaded, err := reader.Load(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, table.Fingerprint(), reloaded.Fingerprint())
		})
	}
}

func TestSave_UnwritableDirectory(t *testing.T) {
	blocker := writeFile(t, "blocker", "x")
	table, err := experiment.NewTable([]string{"a"}, nil)
	require.NoError(t, err)

	_, err = NewSnapshotWriter("csv", internal.NewNopLogger()).Save(context.Background(), table, filepath.Join(blocker, "sub"), "")
	require.Error(t, err)
	assert.True(t, core.IsIOError(err))
}

func TestSave_RefusesExistingFile(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "clean.csv")
	require.NoError(t, os.WriteFile(existing, []byte("keep me\n"), 0o644))

	table, err := experiment.NewTable([]string{"a"}, [][]string{{"1"}})
	require.NoError(t, err)

	_, err = NewSnapshotWriter("csv", internal.NewNopLogger()).Save(context.Background(), table, dir, "clean.csv")
	require.Error(t, err)
	assert.True(t, core.IsIOError(err))
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me\n", string(data))
}
