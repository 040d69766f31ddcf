package metrics

import "time"

// PlanEvent summarises one planning run.
type PlanEvent struct {
	RunID       string
	Solver      string
	Horizon     int
	Cost        float64
	DirectCost  float64
	Penalty     float64
	Evaluations int
	NonFinite   int
	// BaselineCost is only meaningful when HasBaseline is set.
	BaselineCost float64
	HasBaseline  bool
	Duration     time.Duration
	Time         time.Time
}

// MetricsSink records planning runs for observability purposes.
type MetricsSink interface {
	RecordPlan(ev PlanEvent) error
}

// StepEvent is one step of a planned schedule.
type StepEvent struct {
	RunID   string
	Step    int
	Grid    float64
	Diesel  float64
	Battery float64
	SoC     float64
	Time    time.Time
}

// ScheduleRecorder records the planned schedule step by step.
type ScheduleRecorder interface {
	RecordSchedule(steps []StepEvent) error
}

// ConvergenceEvent carries the best cost after every iteration of a run.
type ConvergenceEvent struct {
	RunID  string
	Solver string
	Best   []float64
	Time   time.Time
}

// ConvergenceRecorder records optimizer convergence histories.
type ConvergenceRecorder interface {
	RecordConvergence(ev ConvergenceEvent) error
}

// FallbackEvent records a run whose LP baseline could not be computed.
type FallbackEvent struct {
	RunID  string
	Reason string
	Time   time.Time
}

// FallbackRecorder records baseline fallbacks.
type FallbackRecorder interface {
	RecordFallback(ev FallbackEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPlan(PlanEvent) error               { return nil }
func (NopSink) RecordSchedule([]StepEvent) error         { return nil }
func (NopSink) RecordConvergence(ConvergenceEvent) error { return nil }
func (NopSink) RecordFallback(FallbackEvent) error       { return nil }
