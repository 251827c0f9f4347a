// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metrics counts authentication operations and exports them in the
// Prometheus text format. A CLI process is short-lived, so instead of serving
// /metrics it writes a file for node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	autherrors "authkit/cli/internal/errors"
)

// Result labels used besides the error kinds.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Recorder holds the authkit collectors on a private registry.
type Recorder struct {
	reg           *prometheus.Registry
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	authenticated prometheus.Gauge
}

// New creates a Recorder with every collector registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authkit",
			Name:      "operations_total",
			Help:      "Session operations by outcome.",
		}, []string{"operation", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "authkit",
			Name:      "operation_duration_seconds",
			Help:      "Time spent in session operations, including the service round trip.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		authenticated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "authkit",
			Name:      "session_authenticated",
			Help:      "1 when a session token is held, 0 otherwise.",
		}),
	}
	r.reg.MustRegister(r.operations, r.duration, r.authenticated)
	return r
}

// Observe records one finished operation. The result label is "ok" on success
// and the error kind (e.g. "rejected", "transport") on failure.
func (r *Recorder) Observe(operation string, started time.Time, err error) {
	r.operations.WithLabelValues(operation, Result(err)).Inc()
	r.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// SetAuthenticated tracks the current session status.
func (r *Recorder) SetAuthenticated(ok bool) {
	if ok {
		r.authenticated.Set(1)
		return
	}
	r.authenticated.Set(0)
}

// Gatherer exposes the registry.
func (r *Recorder) Gatherer() prometheus.Gatherer { return r.reg }

// WriteTextfile atomically writes the current values to path.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}

// Result maps an operation error to its result label.
func Result(err error) string {
	if err == nil {
		return ResultOK
	}
	if kind := autherrors.KindOf(err); kind != "" {
		return string(kind)
	}
	return ResultError
}
