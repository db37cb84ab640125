// Package metrics defines the events emitted by the publish loop and the
// sinks that record them. Sinks like PromSink and InfluxSink live in
// infra/metrics and register themselves by name; NewMetricsSink builds
// them from configuration and returns a MultiSink when several are
// configured.
package metrics
