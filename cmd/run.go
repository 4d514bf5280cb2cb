package cmd

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sarchlab/tlmbus/config"
	"github.com/sarchlab/tlmbus/logging"
	"github.com/sarchlab/tlmbus/simulation"
)

// ErrViolations is returned by run when the checker found problems.
var ErrViolations = errors.New("protocol violations found")

type runOptions struct {
	configPath string
	logLevel   string
	seed       int64
	count      int
	monitor    string
	record     string
	open       bool
}

func newRunCmd() *cobra.Command {
	opts := runOptions{}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run traffic through an initiator and a target.",
		Long: "`run --config bus.yaml` builds the bus the file describes, " +
			"drives it with the configured traffic and prints a summary. " +
			"It fails if the checker found any violation.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulation(cmd, opts)
		},
	}

	flags := runCmd.Flags()
	flags.StringVar(&opts.configPath, "config", envOr(envConfig, ""),
		"YAML file describing the bus")
	flags.StringVar(&opts.logLevel, "log-level", envOr(envLogLevel, ""),
		"override the log level of the config")
	flags.Int64Var(&opts.seed, "seed", 0, "override the random seed")
	flags.IntVar(&opts.count, "count", -1,
		"override the number of random transactions")
	flags.StringVar(&opts.monitor, "monitor", "",
		"serve metrics on this address, e.g. localhost:9090")
	flags.StringVar(&opts.record, "record", "",
		"record transactions to this SQLite file")
	flags.BoolVar(&opts.open, "open", false,
		"open the monitoring page in a browser, requires --monitor")

	return runCmd
}

func loadConfig(cmd *cobra.Command, opts runOptions) (config.Config, error) {
	c := config.Default()

	if opts.configPath != "" {
		var err error

		c, err = config.Load(opts.configPath)
		if err != nil {
			return c, err
		}
	}

	flags := cmd.Flags()
	if opts.logLevel != "" {
		c.Log.Level = opts.logLevel
	}

	if flags.Changed("seed") {
		c.Seed = opts.seed
	}

	if opts.count >= 0 {
		c.Traffic.Count = opts.count
	}

	if opts.monitor != "" {
		c.Metrics.Addr = opts.monitor
	}

	if opts.record != "" {
		c.Record = opts.record
	}

	return c, c.Validate()
}

func runSimulation(cmd *cobra.Command, opts runOptions) error {
	c, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logger, err := logging.New(c.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	s, err := simulation.MakeBuilder().
		WithConfig(c).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}

	if opts.open {
		openMonitor(s, logger)
	}

	runErr := s.Run()
	termErr := s.Terminate()

	if runErr != nil {
		return runErr
	}

	if termErr != nil {
		logger.Warn("cannot terminate simulation", zap.Error(termErr))
	}

	sum := s.Summary()
	printSummary(cmd.OutOrStdout(), sum)

	if len(sum.Violations) > 0 {
		return fmt.Errorf("%w: %d", ErrViolations, len(sum.Violations))
	}

	return nil
}

func openMonitor(s *simulation.Simulation, logger *zap.Logger) {
	if s.Server() == nil {
		logger.Warn("--open needs a monitoring address")
		return
	}

	url := "http://" + s.Server().Addr() + "/api/progress"
	if err := browser.OpenURL(url); err != nil {
		logger.Warn("cannot open browser", zap.String("url", url),
			zap.Error(err))
	}
}

func printSummary(w io.Writer, sum simulation.Summary) {
	fmt.Fprintf(w, "issued:     %d\n", sum.Issued)
	fmt.Fprintf(w, "completed:  %d\n", sum.Completed)
	fmt.Fprintf(w, "retries:    %d\n", sum.Retries)
	fmt.Fprintf(w, "end time:   %.3e s\n", sum.EndTime)
	fmt.Fprintf(w, "events:     %d\n", sum.Events)
	fmt.Fprintf(w, "peak reads: %d  peak writes: %d\n",
		sum.PeakReads, sum.PeakWrites)

	kinds := make([]string, 0, len(sum.Latency))
	for k := range sum.Latency {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	for _, k := range kinds {
		l := sum.Latency[k]
		fmt.Fprintf(w, "%-6s n=%d avg=%.3e s max=%.3e s\n",
			k, l.Count, l.Average, l.Max)
	}

	if sum.ReplayAnomalies > 0 {
		fmt.Fprintf(w, "replay anomalies: %d\n", sum.ReplayAnomalies)
	}

	fmt.Fprintf(w, "violations: %d\n", len(sum.Violations))
	for _, v := range sum.Violations {
		fmt.Fprintf(w, "  %s\n", v.Error())
	}
}
