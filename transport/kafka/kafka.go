// Package kafka provides the Kafka transport of the bridge.
//
// Outbound messages are keyed by their session id so one device session
// stays on one partition. Topics listed in the pinned partition map are
// produced to and consumed from that single partition; every other topic is
// hash-partitioned on publish and consumed through the consumer group.
package kafka

import (
	"context"
	"maps"
	"time"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/jdalberg/acs/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "kafka"

const (
	producerTimeout        = 5 * time.Second
	consumerSessionTimeout = 6 * time.Second
)

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return kafka.NewSubscriber(cfg, logger)
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaCapabilities)
}

// Build creates a new Kafka transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	brokers := cfg.GetKafkaBrokers()
	clientID := cfg.GetKafkaClientID()
	pinned := maps.Clone(cfg.GetPinnedPartitions())
	marshaler := NewMarshaler(pinned)

	publisher, err := PublisherFactory(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             marshaler,
			OverwriteSaramaConfig: publisherSaramaConfig(clientID, pinned),
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           marshaler,
			OverwriteSaramaConfig: subscriberSaramaConfig(clientID),
			ConsumerGroup:         cfg.GetKafkaConsumerGroup(),
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	if len(pinned) > 0 {
		logger.Info("Pinning kafka topics to fixed partitions", watermill.LogFields{"partitions": pinned})
		subscriber = newPartitionRouter(subscriber, newPartitionSubscriber(brokers, pinned, OffsetStoreFactory(brokers, cfg.GetKafkaConsumerGroup()), logger), pinned)
	}

	return transport.Transport{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.KafkaCapabilities
}

func publisherSaramaConfig(clientID string, pinned map[string]int32) *sarama.Config {
	conf := kafka.DefaultSaramaSyncPublisherConfig()
	if clientID != "" {
		conf.ClientID = clientID
	}
	conf.Producer.Timeout = producerTimeout
	conf.Producer.Partitioner = partitionerFor(pinned)
	return conf
}

func subscriberSaramaConfig(clientID string) *sarama.Config {
	conf := kafka.DefaultSaramaSubscriberConfig()
	if clientID != "" {
		conf.ClientID = clientID
	}
	conf.Consumer.Group.Session.Timeout = consumerSessionTimeout
	conf.Consumer.Offsets.AutoCommit.Enable = true
	return conf
}

// partitionerFor honours the partition chosen by the marshaler on pinned
// topics and hashes the message key everywhere else.
func partitionerFor(pinned map[string]int32) sarama.PartitionerConstructor {
	return func(topic string) sarama.Partitioner {
		if _, ok := pinned[topic]; ok {
			return sarama.NewManualPartitioner(topic)
		}
		return sarama.NewHashPartitioner(topic)
	}
}
