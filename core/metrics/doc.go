// Package metrics defines the sinks that observe planning runs. Sinks like
// PromSink and InfluxSink (infra/metrics) record plan events and can be
// combined with NewMultiSink. NewMetricsSink returns a MultiSink
// automatically when several sinks are configured. Optional recorder
// interfaces let a sink also receive the schedule, the convergence history
// and baseline fallbacks.
package metrics
