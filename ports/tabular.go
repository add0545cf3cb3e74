package ports

import (
	"context"

	"abtest/domain/experiment"
)

// TableLoader reads a tabular source into a table, preserving row order
// and every declared column
type TableLoader interface {
	Load(ctx context.Context, path string) (*experiment.Table, error)
}

// SnapshotWriter persists a table as a flat file and returns the written
// path. An empty filename selects the timestamped default name.
type SnapshotWriter interface {
	Save(ctx context.Context, table *experiment.Table, dir, filename string) (string, error)
}
