package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/microgrid/core/results"
)

var historyFlags struct {
	solver string
	runID  string
	since  time.Duration
	limit  int
	json   bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored planning runs",
	RunE:  runHistory,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.solver, "solver", "", "only runs of this solver")
	f.StringVar(&historyFlags.runID, "run", "", "only this run id")
	f.DurationVar(&historyFlags.since, "since", 0, "only runs newer than this")
	f.IntVarP(&historyFlags.limit, "limit", "n", 20, "most recent runs to show (0 for all)")
	f.BoolVar(&historyFlags.json, "json", false, "print full records as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := results.Open(cfg.Results)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	q := results.Query{Solver: historyFlags.solver, RunID: historyFlags.runID, Limit: historyFlags.limit}
	if historyFlags.since > 0 {
		q.Start = time.Now().Add(-historyFlags.since)
	}
	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}

	if historyFlags.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "run\ttime\tsolver\tsteps\tcost\tbaseline\tfallback")
	for _, r := range recs {
		base := "-"
		if r.BaselineCost != nil {
			base = fmt.Sprintf("%.4f", *r.BaselineCost)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.4f\t%s\t%t\n",
			r.RunID, r.Timestamp.Format(time.RFC3339), r.Solver, r.Horizon, r.Cost, base, r.FallbackApplied)
	}
	return tw.Flush()
}
