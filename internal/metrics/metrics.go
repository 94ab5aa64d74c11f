// Package metrics tracks broker and stock-processing statistics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stocksync"

// Metrics holds the Prometheus collectors shared by publisher, subscriber and
// stock handler. A nil *Metrics is valid and records nothing, so wiring
// metrics stays optional.
type Metrics struct {
	messagesConsumed *prometheus.CounterVec
	messagesAcked    prometheus.Counter
	messagesRejected *prometheus.CounterVec
	publishAttempts  prometheus.Counter
	publishFailures  prometheus.Counter
	stockWarnings    *prometheus.CounterVec
	processingTime   prometheus.Histogram
}

func newCounterVec(subsystem, name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newCounter(subsystem, name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
}

// New builds the collector set and registers it with the supplied registerer.
// Pass prometheus.DefaultRegisterer outside of tests.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		messagesConsumed: newCounterVec("consumer", "messages_consumed_total",
			"Messages delivered to the dispatcher, by event kind.", []string{"event_kind"}),
		messagesAcked: newCounter("consumer", "messages_acked_total",
			"Messages acknowledged after successful handling."),
		messagesRejected: newCounterVec("consumer", "messages_rejected_total",
			"Messages rejected without requeue, by reason.", []string{"reason"}),
		publishAttempts: newCounter("publisher", "publish_attempts_total",
			"Publish attempts, including retries."),
		publishFailures: newCounter("publisher", "publish_failures_total",
			"Publishes dropped after exhausting all retries."),
		stockWarnings: newCounterVec("stock", "warnings_total",
			"Per-item warnings recorded while applying orders, by reason.", []string{"reason"}),
		processingTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "processing_seconds",
			Help:      "Time spent handling one delivery.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	collectors := []prometheus.Collector{
		m.messagesConsumed, m.messagesAcked, m.messagesRejected,
		m.publishAttempts, m.publishFailures, m.stockWarnings, m.processingTime,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler exposes the default Prometheus registry over HTTP.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Rejection reasons.
const (
	RejectReasonDecode  = "decode"
	RejectReasonHandler = "handler"
)

// Stock warning reasons.
const (
	WarnProductNotFound   = "product_not_found"
	WarnInsufficientStock = "insufficient_stock"
)

func (m *Metrics) MessageConsumed(eventKind string) {
	if m == nil {
		return
	}
	m.messagesConsumed.WithLabelValues(eventKind).Inc()
}

func (m *Metrics) MessageAcked() {
	if m == nil {
		return
	}
	m.messagesAcked.Inc()
}

func (m *Metrics) MessageRejected(reason string) {
	if m == nil {
		return
	}
	m.messagesRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) PublishAttempt() {
	if m == nil {
		return
	}
	m.publishAttempts.Inc()
}

func (m *Metrics) PublishFailure() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

func (m *Metrics) StockWarning(reason string) {
	if m == nil {
		return
	}
	m.stockWarnings.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveProcessing(seconds float64) {
	if m == nil {
		return
	}
	m.processingTime.Observe(seconds)
}
