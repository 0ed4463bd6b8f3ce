package transport

// Capabilities describes the delivery guarantees a transport backend offers
// the bridge. The service inspects them at startup to warn about settings the
// backend cannot honour.
type Capabilities struct {
	// Name is the human-readable name of the transport.
	Name string

	// SupportsOrdering indicates messages within a partition/stream are delivered in order.
	SupportsOrdering bool

	// SupportsKeyedPublish indicates the session_id key steers placement, so
	// events of one device session land in the same ordered stream.
	SupportsKeyedPublish bool

	// SupportsPartitioning indicates publish and subscribe can be pinned to a
	// fixed partition.
	SupportsPartitioning bool

	// SupportsNativeDLQ indicates the broker routes failed messages itself.
	// When false the bridge publishes failures to its own dead-letter topic.
	SupportsNativeDLQ bool

	// SupportsAck indicates the transport supports explicit message acknowledgment.
	SupportsAck bool

	// SupportsNack indicates the transport supports negative acknowledgment (redelivery).
	SupportsNack bool

	// SupportsTopicBootstrap indicates missing topics can be created on startup.
	SupportsTopicBootstrap bool

	// MaxMessageSize is the maximum message size in bytes (0 = unlimited/unknown).
	MaxMessageSize int64
}

// RequiresDLQEmulation returns true if the transport needs application-level
// dead-letter routing.
func (c Capabilities) RequiresDLQEmulation() bool {
	return !c.SupportsNativeDLQ
}

// SupportsReliableDelivery returns true if the transport supports at-least-once
// delivery semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// PreservesSessionOrder reports whether events sharing a session key are
// delivered to consumers in publish order.
func (c Capabilities) PreservesSessionOrder() bool {
	return c.SupportsOrdering && c.SupportsKeyedPublish
}

// Fits reports whether a payload of the given size is within MaxMessageSize.
func (c Capabilities) Fits(size int) bool {
	return c.MaxMessageSize == 0 || int64(size) <= c.MaxMessageSize
}

// Predefined capability sets for the bundled transports.
var (
	// ChannelCapabilities for the in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// KafkaCapabilities for Apache Kafka.
	KafkaCapabilities = Capabilities{
		Name:                   "kafka",
		SupportsOrdering:       true,
		SupportsKeyedPublish:   true,
		SupportsPartitioning:   true,
		SupportsAck:            true,
		SupportsTopicBootstrap: true,
		MaxMessageSize:         1048576, // Default 1MB
	}

	// RabbitMQCapabilities for RabbitMQ/AMQP.
	RabbitMQCapabilities = Capabilities{
		Name:              "rabbitmq",
		SupportsOrdering:  true,
		SupportsNativeDLQ: true,
		SupportsAck:       true,
		SupportsNack:      true,
	}

	// NATSCapabilities for NATS Core.
	NATSCapabilities = Capabilities{
		Name:           "nats",
		MaxMessageSize: 1048576, // Default 1MB
	}

	// AWSCapabilities for AWS SNS/SQS.
	AWSCapabilities = Capabilities{
		Name:              "aws",
		SupportsNativeDLQ: true,
		SupportsAck:       true,
		SupportsNack:      true,
		MaxMessageSize:    262144, // 256KB
	}

	// HTTPCapabilities for the HTTP transport.
	HTTPCapabilities = Capabilities{
		Name: "http",
	}
)

// GetCapabilities returns the capabilities registered for a transport name.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
