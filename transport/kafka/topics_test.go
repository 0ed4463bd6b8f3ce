package kafka

import (
	"context"
	"errors"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

func TestTopicConfigs(t *testing.T) {
	configs := topicConfigs([]TopicSpec{
		{Name: "nuuacs-inform-events", Partitions: 3, ReplicationFactor: 2},
		{Name: "nuuacs-policy-events"},
		{Name: "nuuacs-inform-events", Partitions: 9},
		{Name: ""},
	})

	assert.Equal(t, []kafkago.TopicConfig{
		{Topic: "nuuacs-inform-events", NumPartitions: 3, ReplicationFactor: 2},
		{Topic: "nuuacs-policy-events", NumPartitions: 1, ReplicationFactor: 1},
	}, configs)
}

func TestEnsureTopics_NothingToDo(t *testing.T) {
	assert.NoError(t, EnsureTopics(context.Background(), nil, nil))
}

func TestEnsureTopics_NoBrokers(t *testing.T) {
	err := EnsureTopics(context.Background(), nil, []TopicSpec{{Name: "t"}})
	assert.ErrorContains(t, err, "no brokers")
}

func TestEnsureTopics_UnreachableBrokers(t *testing.T) {
	original := Dial
	t.Cleanup(func() { Dial = original })

	var dialed []string
	Dial = func(ctx context.Context, network, address string) (*kafkago.Conn, error) {
		dialed = append(dialed, address)
		return nil, errors.New("connection refused")
	}

	err := EnsureTopics(context.Background(), []string{"a:9092", "b:9092"}, []TopicSpec{{Name: "t"}})
	assert.ErrorContains(t, err, "no reachable broker")
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, []string{"a:9092", "b:9092"}, dialed)
}
