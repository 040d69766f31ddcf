// Package app wires configuration into a ready-to-use planning service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kilianp07/microgrid/api/plans"
	"github.com/kilianp07/microgrid/config"
	"github.com/kilianp07/microgrid/core/baseline"
	coremetrics "github.com/kilianp07/microgrid/core/metrics"
	"github.com/kilianp07/microgrid/core/model"
	coremqtt "github.com/kilianp07/microgrid/core/mqtt"
	"github.com/kilianp07/microgrid/core/optimize"
	"github.com/kilianp07/microgrid/core/planner"
	"github.com/kilianp07/microgrid/core/results"
	"github.com/kilianp07/microgrid/infra/logger"
	"github.com/kilianp07/microgrid/infra/metrics"
	"github.com/kilianp07/microgrid/infra/mqtt"
	"github.com/kilianp07/microgrid/internal/dataset"
)

// Service plans dispatches and hands the result to the store, the metrics
// sinks and the broker.
type Service struct {
	cfg     *config.Config
	planner *planner.Planner
	sink    coremetrics.MetricsSink
	store   results.Store
	pub     coremqtt.Publisher
	log     logger.Logger
}

// Option customises a Service.
type Option func(*options)

type options struct {
	pub  coremqtt.Publisher
	sink coremetrics.MetricsSink
	now  func() time.Time
}

// WithPublisher replaces the publisher built from the mqtt section.
func WithPublisher(p coremqtt.Publisher) Option {
	return func(o *options) { o.pub = p }
}

// WithSink replaces the sinks built from the metrics section.
func WithSink(s coremetrics.MetricsSink) Option {
	return func(o *options) { o.sink = s }
}

// WithClock overrides the planner clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	logger.SetLevel(cfg.Logging.Level)
	logg := logger.New("service")

	sink := o.sink
	if sink == nil {
		s, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
		if err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
		sink = s
	}

	fail := func(format string, err error) (*Service, error) {
		closeSink(sink)
		return nil, fmt.Errorf(format, err)
	}

	opt, err := optimize.New(cfg.Solver, logger.New(cfg.Solver.Type))
	if err != nil {
		return fail("solver: %w", err)
	}

	popts := []planner.Option{
		planner.WithLogger(logger.New("planner")),
		planner.WithSink(sink),
		planner.WithWeights(cfg.Penalty),
		planner.WithAllowCharging(cfg.Bounds.AllowCharging),
		planner.WithBaseline(baselineFunc(cfg)),
	}
	if o.now != nil {
		popts = append(popts, planner.WithClock(o.now))
	}
	pl, err := planner.New(cfg.System, opt, popts...)
	if err != nil {
		return fail("planner: %w", err)
	}

	store, err := results.Open(cfg.Results)
	if err != nil {
		return fail("results store: %w", err)
	}

	pub := o.pub
	if pub == nil {
		p, err := mqtt.New(cfg.MQTT)
		if err != nil {
			_ = store.Close()
			return fail("mqtt publisher: %w", err)
		}
		pub = p
	}

	return &Service{cfg: cfg, planner: pl, sink: sink, store: store, pub: pub, log: logg}, nil
}

func baselineFunc(cfg *config.Config) planner.BaselineFunc {
	if !cfg.Baseline.Enabled {
		return nil
	}
	o := baseline.DefaultOptions()
	o.UnmetCost = cfg.Baseline.UnmetCost
	o.AllowCharging = cfg.Bounds.AllowCharging
	return func(data model.ProblemData, params model.SystemParams) (baseline.Result, error) {
		return baseline.Solve(data, params, o)
	}
}

// LoadData reads the configured dataset, truncated to the configured horizon.
func (s *Service) LoadData() (dataset.Dataset, error) {
	ds, err := dataset.Load(s.cfg.Data.Path)
	if err != nil {
		return dataset.Dataset{}, err
	}
	return ds.Truncate(s.cfg.Data.Horizon), nil
}

// Plan runs the planner on data, stores the run and publishes the schedule.
// An interrupted search still returns its best plan with the context error,
// but nothing is stored or published for it.
func (s *Service) Plan(ctx context.Context, data model.ProblemData) (planner.Plan, error) {
	plan, err := s.planner.Plan(ctx, data)
	if err != nil {
		return plan, err
	}
	if err := s.store.Append(ctx, NewRecord(plan)); err != nil {
		return plan, fmt.Errorf("store plan: %w", err)
	}
	if err := s.pub.PublishPlan(ctx, NewPlanMessage(plan)); err != nil {
		s.log.Errorf("publish plan %s: %v", plan.RunID, err)
		return plan, err
	}
	return plan, nil
}

// History returns the stored runs matching q.
func (s *Service) History(ctx context.Context, q results.Query) ([]results.Record, error) {
	return s.store.Query(ctx, q)
}

// Run plans the configured dataset every interval until ctx ends. The
// dataset is reloaded before each run so that refreshed forecasts are
// picked up. Failed runs are logged and the loop carries on. When
// metrics.prometheus_addr is set, /metrics and /api/plans are served there.
func (s *Service) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			routes := map[string]http.Handler{plans.Path: plans.NewHistoryHandler(s.store, s.cfg.API.Token)}
			if err := metrics.StartPromServer(ctx, addr, routes); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	ds, err := s.LoadData()
	if err != nil {
		s.log.Errorf("load data: %v", err)
		return
	}
	if _, err := s.Plan(ctx, ds.Data); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Errorf("plan: %v", err)
	}
}

// Close releases the store, the broker connection and closable sinks.
func (s *Service) Close() error {
	s.pub.Disconnect()
	closeSink(s.sink)
	return s.store.Close()
}

// closeSink releases sinks holding a connection, such as the Influx client.
func closeSink(sink coremetrics.MetricsSink) {
	if c, ok := sink.(interface{ Close() }); ok {
		c.Close()
	}
}

// NewRecord converts a plan into a stored record.
func NewRecord(plan planner.Plan) results.Record {
	rec := results.Record{
		RunID:           plan.RunID,
		Timestamp:       plan.CreatedAt,
		Solver:          plan.Solver,
		Horizon:         plan.Horizon(),
		Cost:            plan.Cost,
		DirectCost:      plan.Breakdown.Direct(),
		Penalty:         plan.Breakdown.Penalty(),
		FallbackApplied: plan.Outcome.FallbackApplied,
		FallbackReason:  plan.Outcome.Reason,
		Evaluations:     plan.Evaluations,
		Grid:            plan.Grid,
		Diesel:          plan.Diesel,
		Battery:         plan.Battery,
		SoC:             plan.SoC,
		History:         plan.History(),
	}
	if plan.Baseline != nil {
		c := plan.Baseline.Cost
		rec.BaselineCost = &c
	}
	return rec
}

// NewPlanMessage converts a plan into its broker payload.
func NewPlanMessage(plan planner.Plan) coremqtt.PlanMessage {
	return coremqtt.PlanMessage{
		RunID:     plan.RunID,
		Solver:    plan.Solver,
		Timestamp: plan.CreatedAt,
		StepHours: plan.StepHours,
		Cost:      plan.Cost,
		Grid:      plan.Grid,
		Diesel:    plan.Diesel,
		Battery:   plan.Battery,
		SoC:       plan.SoC,
	}
}
