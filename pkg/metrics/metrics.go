package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all pipeline metrics
type Metrics struct {
	// Outbox relay
	OutboxEventsDelivered prometheus.Counter
	OutboxEventsFailed    prometheus.Counter
	OutboxEventsExhausted prometheus.Counter
	OutboxRelayLatency    prometheus.Histogram
	OutboxDeliveryLag     *prometheus.HistogramVec

	// Gate state machine
	GateTransitions        *prometheus.CounterVec
	GateTransitionRejected *prometheus.CounterVec

	// Consumer
	ConsumerProcessed   *prometheus.CounterVec
	ConsumerDuplicates  *prometheus.CounterVec
	ConsumerDeadLetters *prometheus.CounterVec

	// Infrastructure
	DatabaseOperations *prometheus.CounterVec
	BrokerPublishes    *prometheus.CounterVec
}

// New creates and registers all pipeline metrics under a namespace.
func New(namespace string) *Metrics {
	return &Metrics{
		OutboxEventsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_delivered_total",
			Help:      "Outbox events acknowledged by the bus",
		}),
		OutboxEventsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Outbox publish attempts that failed",
		}),
		OutboxEventsExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_exhausted_total",
			Help:      "Outbox events parked after exceeding max attempts",
		}),
		OutboxRelayLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_relay_cycle_seconds",
			Help:      "Duration of one relay claim-publish-mark cycle",
			Buckets:   prometheus.DefBuckets,
		}),
		OutboxDeliveryLag: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_delivery_lag_seconds",
			Help:      "Time between event append and bus acknowledgment",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"event_type"}),
		GateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_transitions_total",
			Help:      "Committed gate transitions",
		}, []string{"gate", "to_status"}),
		GateTransitionRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_transitions_rejected_total",
			Help:      "Gate transitions rejected as illegal or conflicting",
		}, []string{"reason"}),
		ConsumerProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumer_events_processed_total",
			Help:      "Events processed by the consumer, by event type",
		}, []string{"event_type"}),
		ConsumerDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumer_events_duplicate_total",
			Help:      "Redeliveries discarded by the idempotency store",
		}, []string{"event_type"}),
		ConsumerDeadLetters: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumer_events_dead_lettered_total",
			Help:      "Events moved to the dead letter table",
		}, []string{"event_type"}),
		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Database operations by name and outcome",
		}, []string{"operation", "status"}),
		BrokerPublishes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broker_publishes_total",
			Help:      "Bus publish calls by outcome",
		}, []string{"status"}),
	}
}
