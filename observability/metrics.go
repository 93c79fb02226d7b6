package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for beacon. All Record methods
// are safe on a nil receiver.
type Metrics struct {
	DispatchesTotal   *prometheus.CounterVec
	EnqueuesTotal     *prometheus.CounterVec
	DeliveriesTotal   *prometheus.CounterVec
	DeliveryLatency   prometheus.Histogram
	DLQSize           prometheus.Gauge
	PendingDeliveries prometheus.Gauge
	CallbacksTotal    *prometheus.CounterVec
	PayoutsTotal      *prometheus.CounterVec
}

// NewMetrics creates and registers beacon metric instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DispatchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_dispatches_total",
			Help: "Envelopes built for dispatch, by trigger.",
		}, []string{"trigger"}),
		EnqueuesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_enqueues_total",
			Help: "Per-webhook enqueue attempts, by receiver kind and result.",
		}, []string{"receiver", "result"}),
		DeliveriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_deliveries_total",
			Help: "Local queue delivery attempts, by status.",
		}, []string{"status"}),
		DeliveryLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_delivery_latency_seconds",
			Help:    "Latency of local queue delivery attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		DLQSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "beacon_dlq_size",
			Help: "Entries in the dead letter queue.",
		}),
		PendingDeliveries: f.NewGauge(prometheus.GaugeOpts{
			Name: "beacon_pending_deliveries",
			Help: "Local queue deliveries awaiting an attempt.",
		}),
		CallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_callbacks_total",
			Help: "Delivery outcome callbacks received, by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		PayoutsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_payout_callbacks_total",
			Help: "Payout confirmation callbacks, by result.",
		}, []string{"result"}),
	}
}

// RecordDispatch counts one built envelope.
func (m *Metrics) RecordDispatch(trigger string) {
	if m == nil {
		return
	}
	m.DispatchesTotal.WithLabelValues(trigger).Inc()
}

// RecordEnqueue counts one per-webhook enqueue.
func (m *Metrics) RecordEnqueue(receiver string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EnqueuesTotal.WithLabelValues(receiver, result).Inc()
}

// RecordDelivery records a delivery attempt with the given status and latency.
func (m *Metrics) RecordDelivery(status string, latencySeconds float64) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(status).Inc()
	m.DeliveryLatency.Observe(latencySeconds)
}

// RecordCallback counts one inbound callback.
func (m *Metrics) RecordCallback(trigger, outcome string) {
	if m == nil {
		return
	}
	m.CallbacksTotal.WithLabelValues(trigger, outcome).Inc()
}

// RecordPayout counts one payout callback decision.
func (m *Metrics) RecordPayout(result string) {
	if m == nil {
		return
	}
	m.PayoutsTotal.WithLabelValues(result).Inc()
}

// AddPending adjusts the pending deliveries gauge.
func (m *Metrics) AddPending(n float64) {
	if m == nil {
		return
	}
	m.PendingDeliveries.Add(n)
}

// AddDLQ adjusts the DLQ size gauge.
func (m *Metrics) AddDLQ(n float64) {
	if m == nil {
		return
	}
	m.DLQSize.Add(n)
}
