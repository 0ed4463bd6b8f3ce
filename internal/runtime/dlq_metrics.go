package runtime

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DeadLetterMetrics tracks session events moved to the dead-letter topic.
// Methods on a nil *DeadLetterMetrics do nothing.
type DeadLetterMetrics struct {
	mu sync.RWMutex

	// Per dead-letter topic counts
	topicCounts map[string]*DeadLetterTopicMetrics

	// Prometheus collectors
	messagesTotal  *prometheus.CounterVec
	failuresTotal  *prometheus.CounterVec
	ageSecondsHist *prometheus.HistogramVec
	attemptsHist   *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

// DeadLetterTopicMetrics holds the counts for one dead-letter topic.
type DeadLetterTopicMetrics struct {
	MessagesReceived uint64    `json:"messages_received"`
	PublishFailures  uint64    `json:"publish_failures"`
	OldestMessageAt  time.Time `json:"oldest_message_at,omitempty"`
	NewestMessageAt  time.Time `json:"newest_message_at,omitempty"`
	AvgAttempts      float64   `json:"avg_attempts"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
}

// DeadLetterMetricsSnapshot provides a point-in-time view of the counts.
type DeadLetterMetricsSnapshot struct {
	TotalMessages uint64                             `json:"total_messages"`
	TotalFailures uint64                             `json:"total_failures"`
	TopicMetrics  map[string]*DeadLetterTopicMetrics `json:"topic_metrics"`
	CollectedAt   time.Time                          `json:"collected_at"`
}

func newDeadLetterCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "events",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newDeadLetterHistogramVec(name, help string, buckets []float64, labels []string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "dead_letter",
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		},
		labels,
	)
}

// NewDeadLetterMetrics creates the collectors. Call Register before use.
func NewDeadLetterMetrics(registerer prometheus.Registerer) *DeadLetterMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &DeadLetterMetrics{
		topicCounts:    make(map[string]*DeadLetterTopicMetrics),
		registerer:     registerer,
		messagesTotal:  newDeadLetterCounterVec("dead_lettered_total", "Session events published to the dead letter topic", []string{"topic", "original_topic"}),
		failuresTotal:  newDeadLetterCounterVec("dead_letter_failures_total", "Session events lost because the dead letter publish failed too", []string{"topic"}),
		ageSecondsHist: newDeadLetterHistogramVec("event_age_seconds", "Time between receiving the inform and dead-lettering its event", []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300}, []string{"topic"}),
		attemptsHist:   newDeadLetterHistogramVec("publish_attempts", "Publish attempts made before the event was dead-lettered", []float64{1, 2, 3, 5, 10, 20}, []string{"topic"}),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *DeadLetterMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.messagesTotal,
		m.failuresTotal,
		m.ageSecondsHist,
		m.attemptsHist,
	}

	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}

	m.registered = true
	return nil
}

// RecordDeadLettered records an event published to the dead-letter topic.
func (m *DeadLetterMetrics) RecordDeadLettered(topic, originalTopic string, attempts int, age time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	metrics := m.getOrCreateTopicMetrics(topic)
	metrics.MessagesReceived++
	metrics.LastUpdatedAt = now
	if metrics.OldestMessageAt.IsZero() {
		metrics.OldestMessageAt = now
	}
	metrics.NewestMessageAt = now

	// Rolling average
	total := metrics.MessagesReceived
	metrics.AvgAttempts = ((metrics.AvgAttempts * float64(total-1)) + float64(attempts)) / float64(total)

	m.messagesTotal.WithLabelValues(topic, originalTopic).Inc()
	m.ageSecondsHist.WithLabelValues(topic).Observe(age.Seconds())
	m.attemptsHist.WithLabelValues(topic).Observe(float64(attempts))
}

// RecordDeadLetterFailure records an event that could not be dead-lettered.
func (m *DeadLetterMetrics) RecordDeadLetterFailure(topic string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics := m.getOrCreateTopicMetrics(topic)
	metrics.PublishFailures++
	metrics.LastUpdatedAt = time.Now()

	m.failuresTotal.WithLabelValues(topic).Inc()
}

// GetSnapshot returns a point-in-time snapshot of all dead-letter metrics.
func (m *DeadLetterMetrics) GetSnapshot() DeadLetterMetricsSnapshot {
	snapshot := DeadLetterMetricsSnapshot{
		TopicMetrics: make(map[string]*DeadLetterTopicMetrics),
		CollectedAt:  time.Now(),
	}
	if m == nil {
		return snapshot
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for topic, metrics := range m.topicCounts {
		metricsCopy := *metrics
		snapshot.TopicMetrics[topic] = &metricsCopy
		snapshot.TotalMessages += metrics.MessagesReceived
		snapshot.TotalFailures += metrics.PublishFailures
	}

	return snapshot
}

// GetTopicMetrics returns a copy of the metrics for one dead-letter topic.
func (m *DeadLetterMetrics) GetTopicMetrics(topic string) *DeadLetterTopicMetrics {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if metrics, ok := m.topicCounts[topic]; ok {
		metricsCopy := *metrics
		return &metricsCopy
	}
	return nil
}

func (m *DeadLetterMetrics) getOrCreateTopicMetrics(topic string) *DeadLetterTopicMetrics {
	if metrics, ok := m.topicCounts[topic]; ok {
		return metrics
	}
	metrics := &DeadLetterTopicMetrics{}
	m.topicCounts[topic] = metrics
	return metrics
}

// Reset resets all metrics (useful for testing).
func (m *DeadLetterMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.topicCounts = make(map[string]*DeadLetterTopicMetrics)
	m.messagesTotal.Reset()
	m.failuresTotal.Reset()
	m.ageSecondsHist.Reset()
	m.attemptsHist.Reset()
}
