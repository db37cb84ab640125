// Package infra holds the adapters behind the core interfaces: the paho
// MQTT broker, the Prometheus and InfluxDB metric sinks, the JSONL signal
// recorder and the zerolog logger.
package infra
