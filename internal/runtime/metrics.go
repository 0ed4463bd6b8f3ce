package runtime

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "acs"

// Inform outcomes recorded by the ingress handler.
const (
	InformAccepted       = "accepted"
	InformParseError     = "parse_error"
	InformNotInform      = "not_inform"
	InformTransformError = "transform_error"
	InformRejected       = "rejected"
	InformTimeout        = "timeout"
)

// Policy outcomes recorded by the consumer handler.
const (
	PolicyAccepted = "accepted"
	PolicyInvalid  = "invalid"
)

// BridgeMetrics holds the bridge's own Prometheus collectors. A nil
// *BridgeMetrics is valid and records nothing, which is how the service runs
// with metrics disabled.
type BridgeMetrics struct {
	informs         *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	published       prometheus.Counter
	publishFailures prometheus.Counter
	policies        *prometheus.CounterVec
	taskExits       *prometheus.CounterVec

	DeadLetter *DeadLetterMetrics
}

// NewBridgeMetrics creates and registers the collectors on registerer.
func NewBridgeMetrics(registerer prometheus.Registerer) (*BridgeMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &BridgeMetrics{
		informs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "informs_total",
			Help:      "Inform requests handled, by outcome",
		}, []string{"outcome"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "dispatch_queue_depth",
			Help:      "Session events waiting for the producer",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_published_total",
			Help:      "Session events published to the broker",
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_publish_failures_total",
			Help:      "Session events whose publish failed after every retry",
		}),
		policies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "policy_messages_total",
			Help:      "Policy messages consumed, by outcome",
		}, []string{"outcome"}),
		taskExits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "task_exits_total",
			Help:      "Supervised task exits, by task",
		}, []string{"task"}),
		DeadLetter: NewDeadLetterMetrics(registerer),
	}

	collectors := []prometheus.Collector{
		m.informs,
		m.queueDepth,
		m.published,
		m.publishFailures,
		m.policies,
		m.taskExits,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, err
			}
		}
	}
	if err := m.DeadLetter.Register(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *BridgeMetrics) RecordInform(outcome string) {
	if m == nil {
		return
	}
	m.informs.WithLabelValues(outcome).Inc()
}

func (m *BridgeMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// RecordPublish counts one publish that either succeeded or ran out of
// retries.
func (m *BridgeMetrics) RecordPublish(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.publishFailures.Inc()
		return
	}
	m.published.Inc()
}

func (m *BridgeMetrics) RecordPolicy(outcome string) {
	if m == nil {
		return
	}
	m.policies.WithLabelValues(outcome).Inc()
}

func (m *BridgeMetrics) RecordTaskExit(task string) {
	if m == nil {
		return
	}
	m.taskExits.WithLabelValues(task).Inc()
}

// deadLetter is nil-safe.
func (m *BridgeMetrics) deadLetter() *DeadLetterMetrics {
	if m == nil {
		return nil
	}
	return m.DeadLetter
}
