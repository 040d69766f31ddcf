package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/microgrid/app"
	"github.com/kilianp07/microgrid/core/planner"
	"github.com/kilianp07/microgrid/infra/logger"
	"github.com/kilianp07/microgrid/pkg/export"
)

var planFlags struct {
	data    string
	horizon int
	format  string
	output  string
	timeout time.Duration
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan the dispatch for a dataset and export the schedule",
	RunE:  runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&planFlags.data, "data", "", "dataset CSV (overrides data.path)")
	f.IntVar(&planFlags.horizon, "horizon", 0, "number of steps to plan (overrides data.horizon)")
	f.StringVarP(&planFlags.format, "format", "f", "json", "output format: json or csv")
	f.StringVarP(&planFlags.output, "output", "o", "", "output file (default stdout)")
	f.DurationVar(&planFlags.timeout, "timeout", 0, "stop the search after this duration and keep the best plan")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	write, err := exporter(planFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if planFlags.data != "" {
		cfg.Data.Path = planFlags.data
	}
	if planFlags.horizon > 0 {
		cfg.Data.Horizon = planFlags.horizon
	}

	ctx, stop := signalContext()
	defer stop()
	if planFlags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, planFlags.timeout)
		defer cancel()
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	ds, err := svc.LoadData()
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	plan, err := svc.Plan(ctx, ds.Data)
	if err != nil && plan.Horizon() == 0 {
		return err
	}
	if err != nil {
		logger.New("main").Warnf("plan %s is partial: %v", plan.RunID, err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if planFlags.output != "" {
		f, err := os.Create(planFlags.output)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	return write(out, plan)
}

func exporter(format string) (func(io.Writer, planner.Plan) error, error) {
	switch format {
	case "json":
		return export.WriteJSON, nil
	case "csv":
		return export.WriteCSV, nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}
