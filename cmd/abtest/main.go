package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"abtest/adapters/tabular"
	"abtest/app"
	"abtest/domain/core"
	"abtest/internal"
	"abtest/internal/config"
	"abtest/internal/errors"
	"abtest/internal/metrics"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", errors.GetCode(err), err)
		os.Exit(errors.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "abtest",
		Short:         "Clean A/B test exports and test conversion differences",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().String("config", "", "YAML configuration file")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.InvalidInput(err.Error())
	})

	rootCmd.AddCommand(
		newAnalyzeCmd(),
		newCompareCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig reads the config file and environment, then applies the flags
// the user actually set
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("alpha") {
		cfg.Analysis.Alpha, _ = flags.GetFloat64("alpha")
	}
	if flags.Changed("lenient-groups") {
		cfg.Analysis.LenientGroupLabels, _ = flags.GetBool("lenient-groups")
	}
	if flags.Changed("workers") {
		cfg.Analysis.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("save") {
		cfg.Output.Enabled, _ = flags.GetBool("save")
	}
	if flags.Changed("output-dir") {
		cfg.Output.Dir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("output-name") {
		cfg.Output.Filename, _ = flags.GetString("output-name")
	}
	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}
	if flags.Changed("regression") {
		cfg.Regression.Enabled, _ = flags.GetBool("regression")
	}
	if flags.Changed("features") {
		v, _ := flags.GetString("features")
		cfg.Regression.Features = config.SplitList(v)
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.TextfilePath, _ = flags.GetString("metrics-file")
	}

	if err := config.Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid command line options")
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*internal.Logger, error) {
	level := internal.ParseLogLevel(cfg.Logging.Level)
	if cfg.Logging.File != "" {
		return internal.NewFileLogger(level, cfg.Logging.File)
	}
	return internal.NewLogger(level, os.Stderr), nil
}

func newService(cfg *config.Config, m *metrics.PipelineMetrics, logger *internal.Logger) *app.AnalysisService {
	return app.NewAnalysisService(
		tabular.NewDataReader(logger),
		tabular.NewSnapshotWriter(cfg.Output.Format, logger),
		cfg,
		m,
		logger,
	)
}

func newAnalyzeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze [files...]",
		Short: "Clean each file, test treatment against control and optionally fit a logistic model",
		Long: `Run the full pipeline on one or more A/B test exports (.csv, .tsv or .xlsx).

Example: abtest analyze datasets/raw/ab_data.csv --regression --features intercept,ab_group,hour --save`,
		Args: checkArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			var runID core.RunID
			if s, _ := cmd.Flags().GetString("run-id"); s != "" {
				if runID, err = core.ParseRunID(s); err != nil {
					return errors.InvalidInput(err.Error())
				}
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return errors.Wrap(errors.ConfigInvalid(err.Error()), "failed to open log file")
			}
			defer logger.Close()

			m := metrics.New()
			runner := app.NewBatchRunner(newService(cfg, m, logger), cfg.Analysis.Workers, cfg.Output.Filename, logger).
				WithRunID(runID)
			results, runErr := runner.Run(cmd.Context(), args)

			if cfg.Metrics.TextfilePath != "" {
				if err := m.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
					logger.Warn("Failed to write metrics textfile: %v", err)
				}
			}
			if runErr != nil {
				return runErr
			}

			if asJSON {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			for _, r := range results {
				printRun(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.Float64("alpha", 0.05, "Significance level")
	flags.Bool("lenient-groups", false, "Treat every group label other than treatment as control")
	flags.Int("workers", 4, "Files analysed concurrently")
	flags.Bool("save", false, "Write the processed table")
	flags.String("output-dir", "datasets/processed", "Directory for processed tables")
	flags.String("output-name", "", "Processed table filename (default processed_data_<timestamp>.<format>)")
	flags.String("format", "csv", "Processed table format: csv, tsv or xlsx")
	flags.Bool("regression", false, "Fit a logistic regression of converted on --features")
	flags.String("features", "intercept,ab_group", "Comma separated regression features")
	flags.String("metrics-file", "", "Write Prometheus metrics to this textfile")
	flags.String("run-id", "", "UUID to use as the run ID (single file only)")
	flags.BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

func newCompareCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "compare [file]",
		Short: "Show what cleaning removes from a raw export",
		Args:  checkArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return errors.Wrap(errors.ConfigInvalid(err.Error()), "failed to open log file")
			}
			defer logger.Close()

			result, err := newService(cfg, nil, logger).Compare(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), result.Comparison)
			}
			printComparison(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the comparison as JSON")
	return cmd
}

// checkArgs reports positional argument errors as invalid input
func checkArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return errors.InvalidInput(err.Error())
		}
		return nil
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "abtest %s\n", version)
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.InternalError(fmt.Sprintf("failed to encode results: %v", err))
	}
	return nil
}
