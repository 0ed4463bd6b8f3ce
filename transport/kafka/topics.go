package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	kafkago "github.com/segmentio/kafka-go"
)

// TopicSpec describes a topic to create when it does not exist yet.
type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}

// DialFunc opens a connection to a broker address.
type DialFunc func(ctx context.Context, network, address string) (*kafkago.Conn, error)

// Dial is the dialer used by EnsureTopics.
var Dial DialFunc = kafkago.DialContext

// EnsureTopics creates any missing topics through the cluster controller.
// Existing topics are left untouched.
func EnsureTopics(ctx context.Context, brokers []string, topics []TopicSpec) error {
	if len(topics) == 0 {
		return nil
	}
	if len(brokers) == 0 {
		return errors.New("kafka: no brokers to ensure topics on")
	}

	conn, err := dialAny(ctx, brokers)
	if err != nil {
		return err
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka: controller: %w", err)
	}

	ctrlAddr := net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port))
	ctrlConn, err := Dial(ctx, "tcp", ctrlAddr)
	if err != nil {
		return fmt.Errorf("kafka: dial controller %s: %w", ctrlAddr, err)
	}
	defer ctrlConn.Close()

	if err := ctrlConn.CreateTopics(topicConfigs(topics)...); err != nil && !errors.Is(err, kafkago.TopicAlreadyExists) {
		return fmt.Errorf("kafka: create topics: %w", err)
	}
	return nil
}

func dialAny(ctx context.Context, brokers []string) (*kafkago.Conn, error) {
	var errs []error
	for _, broker := range brokers {
		conn, err := Dial(ctx, "tcp", broker)
		if err == nil {
			return conn, nil
		}
		errs = append(errs, fmt.Errorf("dial %s: %w", broker, err))
	}
	return nil, fmt.Errorf("kafka: no reachable broker: %w", errors.Join(errs...))
}

func topicConfigs(topics []TopicSpec) []kafkago.TopicConfig {
	seen := make(map[string]struct{}, len(topics))
	out := make([]kafkago.TopicConfig, 0, len(topics))
	for _, t := range topics {
		if t.Name == "" {
			continue
		}
		if _, dup := seen[t.Name]; dup {
			continue
		}
		seen[t.Name] = struct{}{}

		partitions := max(t.Partitions, 1)
		replication := max(t.ReplicationFactor, 1)
		out = append(out, kafkago.TopicConfig{
			Topic:             t.Name,
			NumPartitions:     partitions,
			ReplicationFactor: replication,
		})
	}
	return out
}
