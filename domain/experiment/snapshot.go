package experiment

import (
	"time"

	"abtest/domain/core"
)

// SnapshotBaseName starts every default processed table filename
const SnapshotBaseName = "processed_data"

// DefaultSnapshotName returns processed_data_<YYYYMMDD_HHMMSS> for t.
// Writers append the extension of their output format.
func DefaultSnapshotName(t time.Time) string {
	return SnapshotBaseName + "_" + core.SnapshotStamp(t)
}
