package cmd

import (
	"fmt"
	"maps"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/microgrid/core/optimize"
	"github.com/kilianp07/microgrid/infra/logger"
)

var benchFlags struct {
	dim       int
	seeds     int
	threshold float64
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the configured solver on the sphere function",
	RunE:  runBench,
}

func init() {
	f := benchCmd.Flags()
	f.IntVar(&benchFlags.dim, "dim", 5, "problem dimension")
	f.IntVar(&benchFlags.seeds, "seeds", 20, "number of seeded runs")
	f.Float64Var(&benchFlags.threshold, "threshold", 1e-3, "cost counted as solved")
	rootCmd.AddCommand(benchCmd)
}

func sphere(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}
	return s
}

func runBench(cmd *cobra.Command, _ []string) error {
	if benchFlags.dim <= 0 || benchFlags.seeds <= 0 {
		return fmt.Errorf("dim and seeds must be positive")
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	lower := make([]float64, benchFlags.dim)
	upper := make([]float64, benchFlags.dim)
	for i := range lower {
		lower[i], upper[i] = -10, 10
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "seed\tcost\titerations\tevaluations")
	solved := 0
	for seed := 1; seed <= benchFlags.seeds; seed++ {
		solverCfg := cfg.Solver
		solverCfg.Conf = maps.Clone(cfg.Solver.Conf)
		if solverCfg.Conf == nil {
			solverCfg.Conf = map[string]any{}
		}
		solverCfg.Conf["seed"] = seed
		opt, err := optimize.New(solverCfg, logger.New("bench"))
		if err != nil {
			return err
		}
		res, err := opt.Optimize(ctx, sphere, lower, upper)
		if err != nil {
			return fmt.Errorf("seed %d: %w", seed, err)
		}
		if res.Cost < benchFlags.threshold {
			solved++
		}
		fmt.Fprintf(tw, "%d\t%.3g\t%d\t%d\n", seed, res.Cost, res.Iterations(), res.Evaluations)
	}
	fmt.Fprintf(tw, "%s solved %d/%d below %g\n", cfg.Solver.Type, solved, benchFlags.seeds, benchFlags.threshold)
	return tw.Flush()
}
