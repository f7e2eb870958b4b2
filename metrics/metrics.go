// Package metrics counts page attempts for Prometheus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "pagerunner"
)

// Attempt outcomes used as label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	OutcomeRetry   = "retry"
)

// Metrics of the page runner. A nil *Metrics records nothing.
type Metrics struct {
	attemptsTotal   *prometheus.CounterVec
	retriesTotal    prometheus.Counter
	abandonedTotal  prometheus.Counter
	pageDuration    *prometheus.HistogramVec
	browserLaunches prometheus.Counter
}

// New registers the page runner metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attemptsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "page_attempts_total",
			Help:      "Count of page attempts by outcome",
		}, []string{
			"outcome",
		}),
		retriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "page_retries_total",
			Help:      "Count of page attempts retried after a browser crash",
		}),
		abandonedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "pages_abandoned_total",
			Help:      "Count of pages not run because of the failure cutoff",
		}),
		pageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "page_duration_seconds",
			Help:      "Duration of page attempts",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{
			"outcome",
		}),
		browserLaunches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "browser_launches_total",
			Help:      "Count of browser launches",
		}),
	}
}

// RecordAttempt counts a finished attempt.
func (m *Metrics) RecordAttempt(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(outcome).Inc()
	m.pageDuration.WithLabelValues(outcome).Observe(d.Seconds())
	if outcome == OutcomeRetry {
		m.retriesTotal.Inc()
	}
}

// RecordAbandoned counts pages skipped by the failure cutoff.
func (m *Metrics) RecordAbandoned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.abandonedTotal.Add(float64(n))
}

// RecordBrowserLaunch counts a browser launch.
func (m *Metrics) RecordBrowserLaunch() {
	if m == nil {
		return
	}
	m.browserLaunches.Inc()
}

// WriteTextfile writes the metrics gathered by g to path in the text
// exposition format, for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
