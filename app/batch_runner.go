package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal"
	"abtest/internal/errors"

	"golang.org/x/sync/errgroup"
)

// Analyzer runs the pipeline for one request
type Analyzer interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// BatchRunner analyses several files concurrently. Each file is an
// independent single-threaded run; the first failure cancels the rest.
type BatchRunner struct {
	analyzer   Analyzer
	workers    int
	outputName string
	logger     *internal.Logger
	runID      core.RunID
	now        func() time.Time
}

// NewBatchRunner creates a runner using at most workers goroutines.
// outputName is the configured snapshot filename, if any.
func NewBatchRunner(analyzer Analyzer, workers int, outputName string, logger *internal.Logger) *BatchRunner {
	if workers < 1 {
		workers = 1
	}
	return &BatchRunner{analyzer: analyzer, workers: workers, outputName: outputName, logger: logger, now: time.Now}
}

// WithRunID fixes the run identifier of a single-file batch
func (b *BatchRunner) WithRunID(id core.RunID) *BatchRunner {
	b.runID = id
	return b
}

// Run analyses paths and returns results in input order
func (b *BatchRunner) Run(ctx context.Context, paths []string) ([]*RunResult, error) {
	if b.runID != "" && len(paths) > 1 {
		return nil, errors.InvalidInput(fmt.Sprintf("a run ID applies to one file, got %d", len(paths)))
	}
	b.logger.Info("Analysing %d files with %d workers", len(paths), b.workers)

	results := make([]*RunResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	names := b.snapshotNames(paths)
	for i, path := range paths {
		req := RunRequest{Path: path, OutputName: names[i], RunID: b.runID}
		g.Go(func() error {
			res, err := b.analyzer.Run(gctx, req)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// snapshotNames gives every input its own snapshot filename when several
// files share one output directory: <stem>_<name>, where name is the
// configured filename or processed_data_<stamp>. Repeated stems get a
// numeric suffix.
func (b *BatchRunner) snapshotNames(paths []string) []string {
	names := make([]string, len(paths))
	if len(paths) == 1 {
		names[0] = b.outputName
		return names
	}

	base := b.outputName
	if base == "" {
		base = experiment.DefaultSnapshotName(b.now())
	}
	used := make(map[string]bool, len(paths))
	for i, path := range paths {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		key := stem
		for n := 2; used[key]; n++ {
			key = fmt.Sprintf("%s_%d", stem, n)
		}
		used[key] = true
		names[i] = key + "_" + base
	}
	return names
}
