// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Drop reasons reported by wsrpc_frames_dropped_total.
const (
	dropDecode              = "decode"
	dropUnknownCall         = "unknown_call"
	dropUnknownSubscription = "unknown_subscription"
	dropServerCall          = "server_call"
	dropBinary              = "binary"
)

// Call outcomes reported by wsrpc_calls_total.
const (
	outcomeOK        = "ok"
	outcomeRPCError  = "rpc_error"
	outcomeClosed    = "closed"
	outcomeCancelled = "cancelled"
)

// Metrics holds the Prometheus collectors of one transport. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	calls         *prometheus.CounterVec
	inflight      prometheus.Gauge
	dropped       *prometheus.CounterVec
	notifications prometheus.Counter
	frames        *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is useful in tests.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsrpc_calls_total",
			Help: "Completed calls by outcome.",
		}, []string{"outcome"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wsrpc_calls_inflight",
			Help: "Calls awaiting a response.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsrpc_frames_dropped_total",
			Help: "Inbound frames dropped by reason.",
		}, []string{"reason"}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wsrpc_notifications_delivered_total",
			Help: "Notifications handed to a live subscription.",
		}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wsrpc_frames_total",
			Help: "Frames moved over the wire by direction.",
		}, []string{"direction"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.calls, m.inflight, m.dropped, m.notifications, m.frames} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) callStarted() {
	if m == nil {
		return
	}
	m.inflight.Inc()
}

func (m *Metrics) callFinished(outcome string) {
	if m == nil {
		return
	}
	m.inflight.Dec()
	m.calls.WithLabelValues(outcome).Inc()
}

func (m *Metrics) drop(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) delivered() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}

func (m *Metrics) frame(direction string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(direction).Inc()
}
