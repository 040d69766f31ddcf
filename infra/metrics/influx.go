package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/microgrid/core/metrics"
	"github.com/kilianp07/microgrid/infra/logger"
)

// InfluxSink writes planning events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// RecordPlan writes one dispatch_plan point.
func (s *InfluxSink) RecordPlan(ev coremetrics.PlanEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_plan").
		AddTag("run_id", ev.RunID).
		AddTag("solver", ev.Solver).
		AddTag("baseline", strconv.FormatBool(ev.HasBaseline)).
		AddField("cost", round3(ev.Cost)).
		AddField("direct_cost", round3(ev.DirectCost)).
		AddField("penalty", round3(ev.Penalty)).
		AddField("horizon", ev.Horizon).
		AddField("evaluations", ev.Evaluations).
		AddField("non_finite", ev.NonFinite).
		AddField("duration_ms", round3(ev.Duration.Seconds()*1000))
	if ev.HasBaseline {
		p = p.AddField("baseline_cost", round3(ev.BaselineCost))
	}
	p = p.SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordSchedule writes one dispatch_step point per step in a single request.
func (s *InfluxSink) RecordSchedule(steps []coremetrics.StepEvent) error {
	if len(steps) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pts := make([]*write.Point, len(steps))
	for i, st := range steps {
		pts[i] = write.NewPointWithMeasurement("dispatch_step").
			AddTag("run_id", st.RunID).
			AddTag("step", strconv.Itoa(st.Step)).
			AddField("grid_kw", round3(st.Grid)).
			AddField("diesel_kw", round3(st.Diesel)).
			AddField("battery_kw", round3(st.Battery)).
			AddField("soc", round3(st.SoC)).
			SetTime(st.Time)
	}
	return s.writeAPI.WritePoint(ctx, pts...)
}

// RecordConvergence writes the best cost of every iteration. Points are
// spaced one millisecond apart from ev.Time so they keep their order.
func (s *InfluxSink) RecordConvergence(ev coremetrics.ConvergenceEvent) error {
	if len(ev.Best) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pts := make([]*write.Point, len(ev.Best))
	for i, b := range ev.Best {
		pts[i] = write.NewPointWithMeasurement("optimizer_convergence").
			AddTag("run_id", ev.RunID).
			AddTag("solver", ev.Solver).
			AddField("iteration", i).
			AddField("best", b).
			SetTime(ev.Time.Add(time.Duration(i) * time.Millisecond))
	}
	return s.writeAPI.WritePoint(ctx, pts...)
}

// RecordFallback records a baseline fallback.
func (s *InfluxSink) RecordFallback(ev coremetrics.FallbackEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("baseline_fallback").
		AddTag("run_id", ev.RunID).
		AddField("fallback_reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
