// Copyright (C) 2019-2025, Lux Partners Limited. All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BridgeMetrics instruments the pass-through bridge.
type BridgeMetrics struct {
	requests         prometheus.Counter
	upstreamFailures prometheus.Counter
	latencyMS        prometheus.Histogram
}

func NewBridgeMetrics(registerer prometheus.Registerer) *BridgeMetrics {
	m := BridgeMetrics{
		requests: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_requests_total",
				Help: "Number of requests forwarded through the bridge",
			},
		),
		upstreamFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "bridge_upstream_failures_total",
				Help: "Number of upstream requests that failed at the network level",
			},
		),
		latencyMS: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bridge_request_latency_ms",
				Help:    "Latency of forwarded requests in milliseconds",
				Buckets: prometheus.ExponentialBucketsRange(1, 10000, 10),
			},
		),
	}
	registerer.MustRegister(m.requests)
	registerer.MustRegister(m.upstreamFailures)
	registerer.MustRegister(m.latencyMS)

	return &m
}
