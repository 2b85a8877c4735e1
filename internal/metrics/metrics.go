// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// Package metrics counts reconciliation passes and exports them in the
// node-exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "aoserv_tomcat"

// Pass outcomes used as the "result" label.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultSkipped = "skipped"
)

// Collector is a prometheus.Collector for reconciliation passes.
type Collector struct {
	passes         *prometheus.CounterVec
	restartsMarked prometheus.Counter
	actionsChanged prometheus.Counter
	passSeconds    prometheus.Histogram
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		passes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "passes_total",
				Help:      "Reconciliation passes by result.",
			}, []string{"result"},
		),
		restartsMarked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "restarts_marked_total",
				Help:      "Passes that marked a runtime instance for restart.",
			},
		),
		actionsChanged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "actions_changed_total",
				Help:      "Install actions that mutated the filesystem.",
			},
		),
		passSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "pass_seconds",
				Help:      "Duration of one site's reconciliation pass.",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.passes.Describe(ch)
	c.restartsMarked.Describe(ch)
	c.actionsChanged.Describe(ch)
	c.passSeconds.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.passes.Collect(ch)
	c.restartsMarked.Collect(ch)
	c.actionsChanged.Collect(ch)
	c.passSeconds.Collect(ch)
}

// ObservePass records one finished pass.
func (c *Collector) ObservePass(result string, changed int, restart bool, took time.Duration) {
	c.passes.WithLabelValues(result).Inc()
	if changed > 0 {
		c.actionsChanged.Add(float64(changed))
	}
	if restart {
		c.restartsMarked.Inc()
	}
	if result != ResultSkipped {
		c.passSeconds.Observe(took.Seconds())
	}
}

// WriteTextfile writes every metric of c to path for the node-exporter
// textfile collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		return fmt.Errorf("register collector: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
