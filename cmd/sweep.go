package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/tlmbus/config"
	"github.com/sarchlab/tlmbus/logging"
	"github.com/sarchlab/tlmbus/simulation"
)

type sweepOptions struct {
	configPath string
	logLevel   string
	seeds      string
	parallel   int
	count      int
}

func newSweepCmd() *cobra.Command {
	opts := sweepOptions{}

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the same bus with several seeds.",
		Long: "`sweep --seeds 1-8` runs one simulation per seed, up to " +
			"--parallel at a time, and prints one line per seed. Monitoring " +
			"and recording are off during a sweep.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSweep(cmd, opts)
		},
	}

	flags := sweepCmd.Flags()
	flags.StringVar(&opts.configPath, "config", envOr(envConfig, ""),
		"YAML file describing the bus")
	flags.StringVar(&opts.logLevel, "log-level", envOr(envLogLevel, ""),
		"override the log level of the config")
	flags.StringVar(&opts.seeds, "seeds", "1-4",
		"seeds to run, as a list (1,5,9) or ranges (1-8) or both")
	flags.IntVar(&opts.parallel, "parallel", 4,
		"number of simulations running at once")
	flags.IntVar(&opts.count, "count", -1,
		"override the number of random transactions")

	return sweepCmd
}

// parseSeeds turns "1-3,7" into [1 2 3 7].
func parseSeeds(s string) ([]int64, error) {
	var seeds []int64

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.ParseInt(lo, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("seed %q: %w", part, err)
		}

		last := first
		if isRange {
			last, err = strconv.ParseInt(hi, 10, 64)
			if err != nil || last < first {
				return nil, fmt.Errorf("bad seed range %q", part)
			}
		}

		for seed := first; seed <= last; seed++ {
			seeds = append(seeds, seed)
		}
	}

	if len(seeds) == 0 {
		return nil, fmt.Errorf("no seeds in %q", s)
	}

	return seeds, nil
}

type sweepResult struct {
	seed    int64
	summary simulation.Summary
}

func runSweep(cmd *cobra.Command, opts sweepOptions) error {
	seeds, err := parseSeeds(opts.seeds)
	if err != nil {
		return err
	}

	if opts.parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", opts.parallel)
	}

	c, err := loadConfig(cmd, runOptions{
		configPath: opts.configPath,
		logLevel:   opts.logLevel,
		count:      opts.count,
	})
	if err != nil {
		return err
	}

	logger, err := logging.New(c.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	results := make([]sweepResult, len(seeds))

	g := new(errgroup.Group)
	g.SetLimit(opts.parallel)

	for i, seed := range seeds {
		g.Go(func() error {
			sum, err := runSeed(c, seed, logger)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}

			results[i] = sweepResult{seed: seed, summary: sum}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	violations := printSweep(cmd.OutOrStdout(), results)
	if violations > 0 {
		return fmt.Errorf("%w: %d", ErrViolations, violations)
	}

	return nil
}

func runSeed(
	c config.Config,
	seed int64,
	logger *zap.Logger,
) (simulation.Summary, error) {
	c.Seed = seed
	c.Metrics.Addr = ""
	c.Record = ""

	s, err := simulation.MakeBuilder().
		WithConfig(c).
		WithLogger(logger.With(zap.Int64("seed", seed))).
		Build()
	if err != nil {
		return simulation.Summary{}, err
	}

	runErr := s.Run()
	termErr := s.Terminate()

	if runErr != nil {
		return simulation.Summary{}, runErr
	}

	return s.Summary(), termErr
}

func printSweep(w io.Writer, results []sweepResult) int {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "seed\tissued\tcompleted\tretries\tviolations\tend time (s)")

	total := 0
	for _, r := range results {
		s := r.summary
		total += len(s.Violations)

		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%.3e\n", r.seed, s.Issued,
			s.Completed, s.Retries, len(s.Violations), s.EndTime)
	}

	_ = tw.Flush()

	return total
}
