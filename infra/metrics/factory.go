package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/microgrid/core/factory"
	coremetrics "github.com/kilianp07/microgrid/core/metrics"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("prometheus", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			Namespace string `json:"namespace"`
		}
		if err := factory.DecodeStrict(conf, &c); err != nil {
			return nil, err
		}
		return NewPromSinkWithRegistry(c.Namespace, prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL         string `json:"url"`
			Token       string `json:"token"`
			Org         string `json:"org"`
			Bucket      string `json:"bucket"`
			HealthCheck bool   `json:"health_check"`
		}
		if err := factory.RequireKeys(conf, "url", "org", "bucket"); err != nil {
			return nil, err
		}
		if err := factory.DecodeStrict(conf, &c); err != nil {
			return nil, err
		}
		if c.HealthCheck {
			return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
		}
		return NewInfluxSink(c.URL, c.Token, c.Org, c.Bucket), nil
	})
}
