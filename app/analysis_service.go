package app

import (
	"context"
	"path/filepath"
	"time"

	"abtest/domain/core"
	"abtest/domain/experiment"
	"abtest/internal"
	"abtest/internal/analysis"
	"abtest/internal/cleaning"
	"abtest/internal/config"
	"abtest/internal/errors"
	"abtest/internal/features"
	"abtest/internal/metrics"
	"abtest/internal/regression"
	"abtest/ports"
)

// RunRequest names one input file and an optional snapshot filename that
// overrides the configured one. RunID, when set, replaces the generated
// run identifier.
type RunRequest struct {
	Path       string
	OutputName string
	RunID      core.RunID
}

// StageResult records how one pipeline stage went
type StageResult struct {
	Name     string `json:"name"`
	Success  bool   `json:"success"`
	Duration int64  `json:"duration_ms"`
	Error    string `json:"error,omitempty"`
}

// RunResult holds every output of one pipeline run
type RunResult struct {
	RunID       core.RunID                      `json:"run_id"`
	Source      string                          `json:"source"`
	StartedAt   core.Timestamp                  `json:"started_at"`
	Duration    time.Duration                   `json:"duration"`
	RawRows     int                             `json:"raw_rows"`
	Cleaning    *cleaning.Result                `json:"cleaning"`
	Comparison  *cleaning.Comparison            `json:"comparison"`
	Rates       experiment.ConversionRateReport `json:"conversion_rates"`
	Test        experiment.TestResult           `json:"test"`
	Chi         analysis.IndependenceResult     `json:"independence"`
	Schema      features.Schema                 `json:"feature_schema"`
	ByHour      []experiment.SegmentRate        `json:"conversion_by_hour"`
	ByDay       []experiment.SegmentRate        `json:"conversion_by_day"`
	Model       *regression.Model               `json:"model,omitempty"`
	OutputPath  string                          `json:"output_path,omitempty"`
	Fingerprint core.Hash                       `json:"fingerprint"`
	Stages      []StageResult                   `json:"stages"`

	Cleaned  *experiment.Table `json:"-"`
	Features *experiment.Table `json:"-"`
}

// AnalysisService runs the load, clean, test, features, regression and
// save stages for one file at a time
type AnalysisService struct {
	loader  ports.TableLoader
	writer  ports.SnapshotWriter
	cfg     *config.Config
	metrics *metrics.PipelineMetrics
	logger  *internal.Logger
}

// NewAnalysisService wires the pipeline. metrics may be nil.
func NewAnalysisService(loader ports.TableLoader, writer ports.SnapshotWriter, cfg *config.Config, m *metrics.PipelineMetrics, logger *internal.Logger) *AnalysisService {
	return &AnalysisService{
		loader:  loader,
		writer:  writer,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// run tracks stage timing and the run-scoped logger
type run struct {
	svc    *AnalysisService
	result *RunResult
	logger *internal.Logger
}

func (r *run) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	sr := StageResult{Name: name, Success: err == nil, Duration: time.Since(start).Milliseconds()}
	if err != nil {
		sr.Error = err.Error()
		r.logger.Error("Stage %s failed: %v", name, err)
	} else {
		r.logger.Debug("Stage %s finished in %dms", name, sr.Duration)
	}
	r.result.Stages = append(r.result.Stages, sr)
	if r.svc.metrics != nil {
		r.svc.metrics.ObserveStage(name, start)
	}
	if err != nil {
		return errors.Wrapf(err, "%s stage failed for %s", name, r.result.Source)
	}
	return nil
}

func (s *AnalysisService) newRun(path string, runID core.RunID) *run {
	if runID == "" {
		runID = core.NewRunID()
	}
	return &run{
		svc: s,
		result: &RunResult{
			RunID:     runID,
			Source:    path,
			StartedAt: core.Now(),
		},
		logger: s.logger.With("run_id", runID.Short(), "source", filepath.Base(path)),
	}
}

// load reads the file and checks the input schema
func (r *run) load(ctx context.Context) (*experiment.Table, error) {
	var raw *experiment.Table
	err := r.stage(ctx, metrics.StageLoad, func() error {
		var err error
		if raw, err = r.svc.loader.Load(ctx, r.result.Source); err != nil {
			return err
		}
		for _, col := range experiment.RequiredColumns {
			if _, err := raw.ColumnIndex(col); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	r.result.RawRows = raw.Len()
	if r.svc.metrics != nil {
		r.svc.metrics.RecordLoaded(raw.Len())
	}
	return raw, nil
}

// clean filters the raw table and compares it with the cleaned one
func (r *run) clean(ctx context.Context, raw *experiment.Table) error {
	return r.stage(ctx, metrics.StageClean, func() error {
		cleaner := cleaning.NewCleaner(r.logger)
		res, err := cleaner.Clean(raw)
		if err != nil {
			return err
		}
		cmp, err := cleaner.Compare(raw, res.Table)
		if err != nil {
			return err
		}
		r.result.Cleaning = res
		r.result.Comparison = cmp
		r.result.Cleaned = res.Table
		r.result.Fingerprint = res.Table.Fingerprint()
		if r.svc.metrics != nil {
			r.svc.metrics.RecordRemoved(res.RemovedInconsistent, res.RemovedDuplicates)
		}
		return nil
	})
}

// Compare loads and cleans a file and reports the raw versus processed
// statistics without testing anything
func (s *AnalysisService) Compare(ctx context.Context, path string) (*RunResult, error) {
	r := s.newRun(path, "")
	raw, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.clean(ctx, raw); err != nil {
		return nil, err
	}
	r.result.Duration = time.Since(r.result.StartedAt.Time())
	return r.result, nil
}

// Run executes the full pipeline for one file. Any stage failure halts the
// run; no partial result is returned.
func (s *AnalysisService) Run(ctx context.Context, req RunRequest) (result *RunResult, err error) {
	r := s.newRun(req.Path, req.RunID)
	r.logger.Info("Starting analysis run")
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordRun(err == nil)
		}
	}()

	raw, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.clean(ctx, raw); err != nil {
		return nil, err
	}
	cleaned := r.result.Cleaned

	analyzer := analysis.NewAnalyzer(r.logger)
	err = r.stage(ctx, metrics.StageTest, func() error {
		var err error
		if r.result.Rates, err = analyzer.ConversionRates(cleaned); err != nil {
			return err
		}
		if r.result.Test, err = analyzer.PerformABTest(cleaned, s.cfg.Analysis.Alpha); err != nil {
			return err
		}
		if r.result.Chi, err = analyzer.ChiSquareIndependence(cleaned); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.RecordTest(filepath.Base(req.Path), r.result.Test.ZStatistic, r.result.Test.PValue)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, metrics.StageFeatures, func() error {
		builder := features.NewBuilder(features.Options{LenientGroupLabels: s.cfg.Analysis.LenientGroupLabels}, r.logger)
		fs, err := builder.Build(cleaned)
		if err != nil {
			return err
		}
		r.result.Features = fs.Table
		r.result.Schema = fs.Schema
		if r.result.ByHour, err = analyzer.ConversionByHour(fs.Table); err != nil {
			return err
		}
		r.result.ByDay, err = analyzer.ConversionByDay(fs.Table)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.cfg.Regression.Enabled {
		err = r.stage(ctx, metrics.StageRegression, func() error {
			fitter := regression.NewFitter(regression.Options{
				MaxIterations: s.cfg.Regression.MaxIterations,
				Tolerance:     s.cfg.Regression.Tolerance,
			}, r.logger)
			var err error
			r.result.Model, err = fitter.Fit(r.result.Features, s.cfg.Regression.Features)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	if s.cfg.Output.Enabled {
		name := req.OutputName
		if name == "" {
			name = s.cfg.Output.Filename
		}
		err = r.stage(ctx, metrics.StageSave, func() error {
			var err error
			r.result.OutputPath, err = s.writer.Save(ctx, r.result.Features, s.cfg.Output.Dir, name)
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	r.result.Duration = time.Since(r.result.StartedAt.Time())
	r.logger.Info("Analysis run finished in %s", r.result.Duration.Round(time.Millisecond))
	return r.result, nil
}
