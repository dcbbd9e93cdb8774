// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ntls

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for handshakes and streams.
// A nil *Metrics records nothing.
type Metrics struct {
	handshakes  *prometheus.CounterVec
	suspensions *prometheus.CounterVec
	bytes       *prometheus.CounterVec
}

// NewMetrics registers the ntls collectors with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ntls",
			Name:      "handshakes_total",
			Help:      "Handshakes that reached a terminal state",
		}, []string{"role", "outcome"}),
		suspensions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ntls",
			Name:      "suspensions_total",
			Help:      "Operations suspended until the transport is ready",
		}, []string{"op"}),
		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ntls",
			Name:      "bytes_total",
			Help:      "Application bytes moved through streams",
		}, []string{"direction"}),
	}
}

// Handshakes returns the counter for role and outcome.
func (m *Metrics) Handshakes(role, outcome string) prometheus.Counter {
	return m.handshakes.WithLabelValues(role, outcome)
}

// Suspensions returns the counter for op.
func (m *Metrics) Suspensions(op string) prometheus.Counter {
	return m.suspensions.WithLabelValues(op)
}

// Bytes returns the counter for direction ("in" or "out").
func (m *Metrics) Bytes(direction string) prometheus.Counter {
	return m.bytes.WithLabelValues(direction)
}

func (m *Metrics) handshake(role, outcome string) {
	if m == nil {
		return
	}
	m.Handshakes(role, outcome).Inc()
}

func (m *Metrics) suspended(op string) {
	if m == nil {
		return
	}
	m.Suspensions(op).Inc()
}

func (m *Metrics) transferred(direction string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Bytes(direction).Add(float64(n))
}
