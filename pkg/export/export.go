// Package export writes planned schedules for downstream tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/microgrid/core/planner"
)

// WriteJSON writes the full plan to w in JSON format.
func WriteJSON(w io.Writer, plan planner.Plan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(plan)
}

// WriteCSV writes one row per step. soc is the state of charge at the end of
// the step.
func WriteCSV(w io.Writer, plan planner.Plan) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"step", "timestamp", "grid_kw", "diesel_kw", "battery_kw", "soc"}); err != nil {
		return err
	}
	step := time.Duration(plan.StepHours * float64(time.Hour))
	for t := 0; t < plan.Horizon(); t++ {
		rec := []string{
			strconv.Itoa(t),
			plan.CreatedAt.Add(time.Duration(t) * step).Format(time.RFC3339),
			formatFloat(plan.Grid[t]),
			formatFloat(plan.Diesel[t]),
			formatFloat(plan.Battery[t]),
			formatFloat(plan.SoC[t+1]),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
