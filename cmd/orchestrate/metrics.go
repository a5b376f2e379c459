package main

import "github.com/prometheus/client_golang/prometheus"

// newMetricsRegistry returns a fresh registry for a single CLI invocation.
func newMetricsRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}
