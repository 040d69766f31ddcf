// Package dataset loads planning inputs from CSV files. The header names the
// columns after model.Channel ("load", "pv", "wind", "irradiance",
// "temperature"), optionally suffixed with "_kw"; an optional "timestamp"
// column holds RFC 3339 times. Unknown columns are ignored.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/microgrid/core/model"
)

// Dataset is one horizon of inputs.
type Dataset struct {
	// Times is nil when the file has no timestamp column.
	Times []time.Time
	Data  model.ProblemData
	// Aux holds the channels that are not dispatch inputs.
	Aux map[model.Channel][]float64
}

// Horizon returns the number of rows.
func (d Dataset) Horizon() int { return d.Data.Horizon() }

// Truncate keeps the first n rows. n <= 0 or n >= Horizon keeps everything.
func (d Dataset) Truncate(n int) Dataset {
	if n <= 0 || n >= d.Horizon() {
		return d
	}
	out := Dataset{
		Data: model.ProblemData{PV: d.Data.PV[:n], Wind: d.Data.Wind[:n], Load: d.Data.Load[:n]},
		Aux:  make(map[model.Channel][]float64, len(d.Aux)),
	}
	if d.Times != nil {
		out.Times = d.Times[:n]
	}
	for c, s := range d.Aux {
		out.Aux[c] = s[:n]
	}
	return out
}

// Load reads the CSV file at path.
func Load(path string) (Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return Dataset{}, err
	}
	defer func() { _ = f.Close() }()
	ds, err := Read(f)
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Read parses a CSV stream and validates the dispatch inputs.
func Read(r io.Reader) (Dataset, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Dataset{}, fmt.Errorf("%w: empty file", model.ErrInvalidData)
		}
		return Dataset{}, err
	}
	cols, timeCol, err := parseHeader(header)
	if err != nil {
		return Dataset{}, err
	}

	series := make(map[model.Channel][]float64, len(cols))
	var times []time.Time
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Dataset{}, err
		}
		for idx, c := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
			if err != nil {
				return Dataset{}, fmt.Errorf("%w: line %d column %s: %v", model.ErrInvalidData, line, c, err)
			}
			series[c] = append(series[c], v)
		}
		if timeCol >= 0 {
			ts, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[timeCol]))
			if err != nil {
				return Dataset{}, fmt.Errorf("%w: line %d timestamp: %v", model.ErrInvalidData, line, err)
			}
			times = append(times, ts)
		}
	}

	ds := Dataset{Times: times, Aux: make(map[model.Channel][]float64)}
	for _, c := range model.Channels {
		s, ok := series[c]
		if !c.Required() {
			if ok {
				ds.Aux[c] = s
			}
			continue
		}
		if err := ds.Data.SetSeries(c, s); err != nil {
			return Dataset{}, err
		}
	}
	if err := ds.Data.Validate(); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

// parseHeader maps column indexes to channels and locates the timestamp
// column (-1 when absent).
func parseHeader(header []string) (map[int]model.Channel, int, error) {
	cols := make(map[int]model.Channel)
	seen := make(map[model.Channel]bool)
	timeCol := -1
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "timestamp" || name == "time" {
			timeCol = i
			continue
		}
		c, err := model.ParseChannel(strings.TrimSuffix(name, "_kw"))
		if err != nil {
			continue
		}
		if seen[c] {
			return nil, 0, fmt.Errorf("%w: duplicate column %s", model.ErrInvalidData, c)
		}
		seen[c] = true
		cols[i] = c
	}
	for _, c := range model.Channels {
		if c.Required() && !seen[c] {
			return nil, 0, fmt.Errorf("%w: missing column %s", model.ErrInvalidData, c)
		}
	}
	return cols, timeCol, nil
}
