package kafka

import (
	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/jdalberg/acs/internal/runtime/metadata"
)

// Marshaler keys outbound records and pins them to a partition when the
// topic has one configured. Unmarshalling is the watermill default.
type Marshaler struct {
	kafka.DefaultMarshaler

	pinned map[string]int32
}

// NewMarshaler returns a Marshaler for the given topic to partition map.
func NewMarshaler(pinned map[string]int32) Marshaler {
	return Marshaler{pinned: pinned}
}

// Marshal implements kafka.Marshaler.
func (m Marshaler) Marshal(topic string, msg *message.Message) (*sarama.ProducerMessage, error) {
	record, err := m.DefaultMarshaler.Marshal(topic, msg)
	if err != nil {
		return nil, err
	}

	if key := PartitionKey(msg); key != "" {
		record.Key = sarama.StringEncoder(key)
	}
	if partition, ok := m.pinned[topic]; ok {
		record.Partition = partition
	}
	return record, nil
}

// PartitionKey returns the record key for msg: an explicit partition_key
// header wins over the session id.
func PartitionKey(msg *message.Message) string {
	if key := msg.Metadata.Get(metadata.KeyPartitionKey); key != "" {
		return key
	}
	return msg.Metadata.Get(metadata.KeySessionID)
}
