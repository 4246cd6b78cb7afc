/*
Copyright 2026 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dbpool

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts events over the lifetime of a pool.
type Metrics struct {
	created          atomic.Int64
	createFailed     atomic.Int64
	evicted          atomic.Int64
	validationFailed atomic.Int64
	resetFailed      atomic.Int64
	protocolErrors   atomic.Int64
	timeouts         atomic.Int64
	waitCount        atomic.Int64
	waitTime         atomic.Int64
}

// Created returns the number of connections added to the pool.
func (m *Metrics) Created() int64 { return m.created.Load() }

// CreateFailed returns the number of failed connection attempts.
func (m *Metrics) CreateFailed() int64 { return m.createFailed.Load() }

// Evicted returns the number of idle connections closed by the sweep.
func (m *Metrics) Evicted() int64 { return m.evicted.Load() }

// ValidationFailed returns the number of idle connections that failed their
// liveness probe on checkout.
func (m *Metrics) ValidationFailed() int64 { return m.validationFailed.Load() }

// ResetFailed returns the number of connections discarded because their
// session could not be reset.
func (m *Metrics) ResetFailed() int64 { return m.resetFailed.Load() }

// ProtocolErrors returns the number of connections reported broken.
func (m *Metrics) ProtocolErrors() int64 { return m.protocolErrors.Load() }

// Timeouts returns the number of Get calls that timed out.
func (m *Metrics) Timeouts() int64 { return m.timeouts.Load() }

// WaitCount returns the number of Get calls that had to wait.
func (m *Metrics) WaitCount() int64 { return m.waitCount.Load() }

// WaitTime returns the total time spent waiting in Get.
func (m *Metrics) WaitTime() time.Duration { return time.Duration(m.waitTime.Load()) }

const metricsNamespace = "dbpool"

// collector exports one pool to Prometheus. All metrics carry a "pool"
// label.
type collector struct {
	pool *Pool

	maxSize          *prometheus.Desc
	total            *prometheus.Desc
	active           *prometheus.Desc
	idle             *prometheus.Desc
	pending          *prometheus.Desc
	created          *prometheus.Desc
	createFailed     *prometheus.Desc
	evicted          *prometheus.Desc
	validationFailed *prometheus.Desc
	resetFailed      *prometheus.Desc
	protocolErrors   *prometheus.Desc
	timeouts         *prometheus.Desc
	waitCount        *prometheus.Desc
	waitSeconds      *prometheus.Desc
}

func newCollector(pool *Pool) *collector {
	labels := prometheus.Labels{"pool": pool.name}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "", name), help, nil, labels)
	}
	return &collector{
		pool:             pool,
		maxSize:          desc("max_size", "Maximum number of connections"),
		total:            desc("connections", "Live connections, idle or in use"),
		active:           desc("active_connections", "Connections lent to callers"),
		idle:             desc("idle_connections", "Connections waiting in the pool"),
		pending:          desc("pending_requests", "Callers waiting for a connection"),
		created:          desc("created_total", "Connections added to the pool"),
		createFailed:     desc("create_failed_total", "Failed attempts to open a connection"),
		evicted:          desc("evicted_total", "Idle connections closed by the eviction sweep"),
		validationFailed: desc("validation_failed_total", "Idle connections that failed validation on checkout"),
		resetFailed:      desc("reset_failed_total", "Connections discarded because their session reset failed"),
		protocolErrors:   desc("protocol_errors_total", "Connections reported broken by callers"),
		timeouts:         desc("timeouts_total", "Requests that timed out waiting for a connection"),
		waitCount:        desc("wait_count_total", "Requests that had to wait for a connection"),
		waitSeconds:      desc("wait_seconds_total", "Total time spent waiting for a connection"),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(c, ch)
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	p := c.pool
	gauge := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v))
	}
	counter := func(d *prometheus.Desc, v int64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}

	gauge(c.maxSize, int64(p.config.MaxSize))
	gauge(c.total, p.Total())
	gauge(c.active, p.Active())
	gauge(c.idle, p.Idle())
	gauge(c.pending, p.Pending())
	counter(c.created, p.Metrics.Created())
	counter(c.createFailed, p.Metrics.CreateFailed())
	counter(c.evicted, p.Metrics.Evicted())
	counter(c.validationFailed, p.Metrics.ValidationFailed())
	counter(c.resetFailed, p.Metrics.ResetFailed())
	counter(c.protocolErrors, p.Metrics.ProtocolErrors())
	counter(c.timeouts, p.Metrics.Timeouts())
	counter(c.waitCount, p.Metrics.WaitCount())
	ch <- prometheus.MustNewConstMetric(c.waitSeconds, prometheus.CounterValue, p.Metrics.WaitTime().Seconds())
}
