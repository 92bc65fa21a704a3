// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ensemble

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes the execution of call trees.
type Metrics interface {
	// MessageDispatched counts a message handed to a contract or module.
	MessageDispatched(kind string)
	// ReplyDelivered counts a reply by outcome, "success" or "error".
	ReplyDelivered(outcome string)
	ScopesReverted(count int)
	// CallFinished counts a top-level call by result, "success" or "failure".
	CallFinished(result string)
}

// NopMetrics discards all observations.
type NopMetrics struct{}

func (NopMetrics) MessageDispatched(string) {}
func (NopMetrics) ReplyDelivered(string)    {}
func (NopMetrics) ScopesReverted(int)       {}
func (NopMetrics) CallFinished(string)      {}

// PrometheusMetrics collects observations in its own Prometheus registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	messagesDispatched *prometheus.CounterVec
	replies            *prometheus.CounterVec
	scopesReverted     prometheus.Counter
	calls              *prometheus.CounterVec
}

func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		messagesDispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_dispatched_total",
				Help:      "Total number of dispatched messages",
			},
			[]string{"kind"},
		),
		replies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replies_total",
				Help:      "Total number of delivered replies",
			},
			[]string{"outcome"},
		),
		scopesReverted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "scopes_reverted_total",
				Help:      "Total number of reverted state scopes",
			},
		),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Total number of top-level calls",
			},
			[]string{"result"},
		),
	}
	m.registry.MustRegister(
		m.messagesDispatched,
		m.replies,
		m.scopesReverted,
		m.calls,
	)
	return m
}

// Registry returns the registry holding all collectors.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) MessageDispatched(kind string) {
	m.messagesDispatched.WithLabelValues(kind).Inc()
}

func (m *PrometheusMetrics) ReplyDelivered(outcome string) {
	m.replies.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) ScopesReverted(count int) {
	m.scopesReverted.Add(float64(count))
}

func (m *PrometheusMetrics) CallFinished(result string) {
	m.calls.WithLabelValues(result).Inc()
}
