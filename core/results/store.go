// Package results persists planning runs and lets them be queried later.
package results

import (
	"context"
	"fmt"
	"time"
)

// Record captures one planning run.
type Record struct {
	RunID           string    `json:"run_id"`
	Timestamp       time.Time `json:"timestamp"`
	Solver          string    `json:"solver"`
	Horizon         int       `json:"horizon"`
	Cost            float64   `json:"cost"`
	DirectCost      float64   `json:"direct_cost"`
	Penalty         float64   `json:"penalty"`
	BaselineCost    *float64  `json:"baseline_cost,omitempty"`
	FallbackApplied bool      `json:"fallback_applied"`
	FallbackReason  string    `json:"fallback_reason,omitempty"`
	Evaluations     int       `json:"evaluations"`
	Grid            []float64 `json:"grid"`
	Diesel          []float64 `json:"diesel"`
	Battery         []float64 `json:"battery"`
	SoC             []float64 `json:"soc"`
	History         []float64 `json:"history,omitempty"`
}

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	Start  time.Time
	End    time.Time
	Solver string
	RunID  string
	// Limit keeps only the most recent records when positive.
	Limit int
}

// Matches reports whether r passes the filters of q, Limit aside.
func (q Query) Matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Solver != "" && r.Solver != q.Solver {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	return true
}

func (q Query) limit(res []Record) []Record {
	if q.Limit > 0 && len(res) > q.Limit {
		return res[len(res)-q.Limit:]
	}
	return res
}

// Store persists Records and supports querying. Records come back oldest
// first.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Config selects and tunes a Store backend.
type Config struct {
	// Backend is one of "none", "jsonl", "jsonl_rotating" or "sqlite".
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults fills unset rotation options.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "none"
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
}

// Validate checks the backend name and that a path is set when needed.
func (c Config) Validate() error {
	switch c.Backend {
	case "", "none":
		return nil
	case "jsonl", "jsonl_rotating", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("results: backend %s needs a path", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("results: unknown backend %q", c.Backend)
	}
}

// Open creates the configured Store.
func Open(cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "jsonl":
		return NewJSONLStore(cfg.Path)
	case "jsonl_rotating":
		return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return NopStore{}, nil
	}
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
