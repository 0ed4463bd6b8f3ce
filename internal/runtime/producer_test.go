package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdalberg/acs/internal/runtime/dispatch"
	errspkg "github.com/jdalberg/acs/internal/runtime/errors"
	jsonpkg "github.com/jdalberg/acs/internal/runtime/jsoncodec"
	metadatapkg "github.com/jdalberg/acs/internal/runtime/metadata"
	sessionpkg "github.com/jdalberg/acs/internal/runtime/session"
	kafkatransport "github.com/jdalberg/acs/transport/kafka"
	"github.com/jdalberg/acs/transport/transporttest"
)

const (
	testInformTopic = "inform-events"
	testDLQTopic    = "inform-events-dlq"
)

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []DeliveryOutcome
}

func (r *outcomeRecorder) HandleOutcome(_ context.Context, outcome DeliveryOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *outcomeRecorder) all() []DeliveryOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DeliveryOutcome(nil), r.outcomes...)
}

func testEvent(serial string) sessionpkg.SessionEvent {
	id := "ACME-001122-" + serial + "-ROUTER"
	return sessionpkg.SessionEvent{
		InstanceID:   "pod-1",
		SessionID:    id,
		SessionType:  sessionpkg.SessionTypeInform,
		SessionState: sessionpkg.SessionStateInit,
		DeviceID:     id,
		Events:       []sessionpkg.Event{{EventCode: "1 BOOT"}},
		Parameters:   []sessionpkg.Parameter{{Name: "InternetGatewayDevice.DeviceInfo.UpTime", Value: "42"}},
	}
}

func newTestProducer(pub *transporttest.Publisher, queue *dispatch.Queue[QueuedEvent], outcomes DeliveryOutcomeHandler, m *BridgeMetrics) *eventProducer {
	return &eventProducer{
		publisher: pub,
		topic:     testInformTopic,
		queue:     queue,
		retry:     RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond},
		outcomes:  outcomes,
		metrics:   m,
		logger:    newTestLogger(),
	}
}

func TestProducerPublishesKeyedEvent(t *testing.T) {
	pub := &transporttest.Publisher{}
	queue := dispatch.New[QueuedEvent](4)
	recorder := &outcomeRecorder{}
	producer := newTestProducer(pub, queue, recorder, nil)

	receivedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, queue.Send(context.Background(), QueuedEvent{
		Event:         testEvent("SN1"),
		CorrelationID: "corr-1",
		ReceivedAt:    receivedAt,
	}))
	queue.Close()

	require.NoError(t, producer.run(context.Background()))

	msgs := pub.Messages(testInformTopic)
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, wantSessionID, msg.Metadata.Get(metadatapkg.KeySessionID))
	assert.Equal(t, "pod-1", msg.Metadata.Get(metadatapkg.KeyInstanceID))
	assert.Equal(t, sessionpkg.EventMessageSchema, msg.Metadata.Get(metadatapkg.KeyEventSchema))
	assert.Equal(t, "corr-1", msg.Metadata.Get(metadatapkg.KeyCorrelationID))
	assert.Equal(t, receivedAt.Format(time.RFC3339Nano), msg.Metadata.Get(metadatapkg.KeyReceivedAt))
	assert.Equal(t, wantSessionID, kafkatransport.PartitionKey(msg))

	var decoded sessionpkg.SessionEvent
	require.NoError(t, jsonpkg.Unmarshal(msg.Payload, &decoded))
	assert.Equal(t, wantSessionID, decoded.SessionID)
	assert.Equal(t, sessionpkg.SessionTypeInform, decoded.SessionType)
	assert.Len(t, decoded.Parameters, 1)

	outcomes := recorder.all()
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Delivered())
	assert.Equal(t, 1, outcomes[0].Attempts)
	assert.Equal(t, msg.UUID, outcomes[0].MessageID)
}

func TestProducerDrainsInOrder(t *testing.T) {
	pub := &transporttest.Publisher{}
	queue := dispatch.New[QueuedEvent](8)
	producer := newTestProducer(pub, queue, OutcomeHandlers{}, nil)

	serials := []string{"SN1", "SN2", "SN3"}
	for _, s := range serials {
		require.NoError(t, queue.Send(context.Background(), QueuedEvent{Event: testEvent(s)}))
	}
	queue.Close()

	require.NoError(t, producer.run(context.Background()))

	msgs := pub.Messages(testInformTopic)
	require.Len(t, msgs, len(serials))
	for i, s := range serials {
		assert.Equal(t, "ACME-001122-"+s+"-ROUTER", msgs[i].Metadata.Get(metadatapkg.KeySessionID))
	}
}

func TestProducerRetriesThenDeadLetters(t *testing.T) {
	errBroker := errors.New("broker unavailable")
	pub := &transporttest.Publisher{TopicErr: map[string]error{testInformTopic: errBroker}}
	queue := dispatch.New[QueuedEvent](4)
	recorder := &outcomeRecorder{}

	m, err := NewBridgeMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	handlers := OutcomeHandlers{
		LoggingOutcomeHandler{Logger: newTestLogger()},
		DeadLetterHandler{Publisher: pub, Topic: testDLQTopic, Logger: newTestLogger(), Metrics: m.DeadLetter},
		recorder,
	}
	producer := newTestProducer(pub, queue, handlers, m)

	require.NoError(t, queue.Send(context.Background(), QueuedEvent{
		Event:         testEvent("SN1"),
		CorrelationID: "corr-1",
		ReceivedAt:    time.Now(),
	}))
	queue.Close()

	require.NoError(t, producer.run(context.Background()))

	assert.Equal(t, 3, pub.AttemptCount(testInformTopic))
	assert.Empty(t, pub.Messages(testInformTopic))

	outcomes := recorder.all()
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, errBroker)
	assert.Equal(t, 3, outcomes[0].Attempts)

	dead := pub.Messages(testDLQTopic)
	require.Len(t, dead, 1)
	assert.Equal(t, errBroker.Error(), dead[0].Metadata.Get(metadatapkg.KeyError))
	assert.Equal(t, testInformTopic, dead[0].Metadata.Get(metadatapkg.KeyOriginalTopic))
	assert.Equal(t, "3", dead[0].Metadata.Get(metadatapkg.KeyAttempts))
	assert.Equal(t, wantSessionID, dead[0].Metadata.Get(metadatapkg.KeySessionID))
	assert.Equal(t, "corr-1", dead[0].Metadata.Get(metadatapkg.KeyCorrelationID))
	assert.Equal(t, outcomes[0].Message.Payload, dead[0].Payload)
	assert.NotEqual(t, outcomes[0].MessageID, dead[0].UUID)

	snapshot := m.DeadLetter.GetSnapshot()
	assert.Equal(t, uint64(1), snapshot.TotalMessages)
	assert.Equal(t, 3.0, snapshot.TopicMetrics[testDLQTopic].AvgAttempts)
}

func TestProducerDeadLetterFailureIsCounted(t *testing.T) {
	errBroker := errors.New("broker unavailable")
	pub := &transporttest.Publisher{Err: errBroker}
	queue := dispatch.New[QueuedEvent](1)

	m, err := NewBridgeMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	producer := newTestProducer(pub, queue, DeadLetterHandler{
		Publisher: pub, Topic: testDLQTopic, Logger: newTestLogger(), Metrics: m.DeadLetter,
	}, m)

	require.NoError(t, queue.Send(context.Background(), QueuedEvent{Event: testEvent("SN1")}))
	queue.Close()
	require.NoError(t, producer.run(context.Background()))

	assert.Equal(t, 1, pub.AttemptCount(testDLQTopic))
	topic := m.DeadLetter.GetTopicMetrics(testDLQTopic)
	require.NotNil(t, topic)
	assert.Equal(t, uint64(1), topic.PublishFailures)
	assert.Zero(t, topic.MessagesReceived)
}

func TestProducerZeroRetriesPublishesOnce(t *testing.T) {
	pub := &transporttest.Publisher{Err: errors.New("down")}
	queue := dispatch.New[QueuedEvent](1)
	recorder := &outcomeRecorder{}
	producer := newTestProducer(pub, queue, recorder, nil)
	producer.retry.MaxRetries = 0

	require.NoError(t, queue.Send(context.Background(), QueuedEvent{Event: testEvent("SN1")}))
	queue.Close()
	require.NoError(t, producer.run(context.Background()))

	assert.Equal(t, 1, pub.AttemptCount(testInformTopic))
	require.Len(t, recorder.all(), 1)
	assert.Equal(t, 1, recorder.all()[0].Attempts)
}

func TestProducerEventWithoutSessionIDFails(t *testing.T) {
	pub := &transporttest.Publisher{}
	queue := dispatch.New[QueuedEvent](1)
	recorder := &outcomeRecorder{}
	producer := newTestProducer(pub, queue, recorder, nil)

	require.NoError(t, queue.Send(context.Background(), QueuedEvent{Event: sessionpkg.SessionEvent{InstanceID: "pod-1"}}))
	queue.Close()
	require.NoError(t, producer.run(context.Background()))

	assert.Equal(t, 0, pub.AttemptCount(testInformTopic))
	outcomes := recorder.all()
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, errspkg.ErrSessionIDRequired)
	assert.Zero(t, outcomes[0].Attempts)
}

func TestProducerDetachesQueueOnCancel(t *testing.T) {
	queue := dispatch.New[QueuedEvent](1)
	producer := newTestProducer(&transporttest.Publisher{}, queue, OutcomeHandlers{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := producer.run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, queue.Detached())
	assert.ErrorIs(t, queue.Send(context.Background(), QueuedEvent{Event: testEvent("SN1")}), errspkg.ErrDispatchClosed)
}

func TestRetryPolicyBackOff(t *testing.T) {
	b := RetryPolicy{InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second}.backOff()
	assert.Equal(t, 50*time.Millisecond, b.InitialInterval)
	assert.Equal(t, time.Second, b.MaxInterval)

	defaults := RetryPolicy{}.backOff()
	assert.Positive(t, defaults.InitialInterval)
	assert.Positive(t, defaults.MaxInterval)
}
