// Package metrics holds the Prometheus collectors of the bot server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sehatbot"

// Metrics groups the server's collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	messages      *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	failures      prometheus.Counter
	notifications *prometheus.CounterVec
	handleSeconds prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages by resulting action.",
		}, []string{"action"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Committed session status transitions.",
		}, []string{"from", "to"}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handle_failures_total",
			Help:      "Messages that ended in an internal error.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound notifications by result (sent, failed, dropped).",
		}, []string{"result"}),
		handleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handle_duration_seconds",
			Help:      "Time spent handling one inbound message.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.messages, m.transitions, m.failures, m.notifications, m.handleSeconds)
	return m
}

func (m *Metrics) Message(action string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(action).Inc()
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) Failure() {
	if m == nil {
		return
	}
	m.failures.Inc()
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveHandle(d time.Duration) {
	if m == nil {
		return
	}
	m.handleSeconds.Observe(d.Seconds())
}
