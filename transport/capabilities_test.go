package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilities_RequiresDLQEmulation(t *testing.T) {
	tests := []struct {
		name          string
		caps          Capabilities
		wantEmulation bool
	}{
		{
			name:          "supports native DLQ",
			caps:          Capabilities{SupportsNativeDLQ: true},
			wantEmulation: false,
		},
		{
			name:          "no native DLQ support",
			caps:          Capabilities{SupportsNativeDLQ: false},
			wantEmulation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantEmulation, tt.caps.RequiresDLQEmulation())
		})
	}
}

func TestCapabilities_SupportsReliableDelivery(t *testing.T) {
	tests := []struct {
		name     string
		caps     Capabilities
		wantBool bool
	}{
		{name: "supports ack and nack", caps: Capabilities{SupportsAck: true, SupportsNack: true}, wantBool: true},
		{name: "supports ack only", caps: Capabilities{SupportsAck: true}, wantBool: false},
		{name: "supports nack only", caps: Capabilities{SupportsNack: true}, wantBool: false},
		{name: "supports neither", caps: Capabilities{}, wantBool: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantBool, tt.caps.SupportsReliableDelivery())
		})
	}
}

func TestCapabilities_PreservesSessionOrder(t *testing.T) {
	assert.True(t, KafkaCapabilities.PreservesSessionOrder())
	assert.False(t, ChannelCapabilities.PreservesSessionOrder(), "ordered but not keyed")
	assert.False(t, NATSCapabilities.PreservesSessionOrder())
	assert.False(t, Capabilities{SupportsKeyedPublish: true}.PreservesSessionOrder())
}

func TestCapabilities_Fits(t *testing.T) {
	assert.True(t, Capabilities{}.Fits(10<<20), "zero means unknown")
	assert.True(t, AWSCapabilities.Fits(262144))
	assert.False(t, AWSCapabilities.Fits(262145))
}

func TestPredefinedCapabilities(t *testing.T) {
	t.Run("ChannelCapabilities", func(t *testing.T) {
		assert.Equal(t, "channel", ChannelCapabilities.Name)
		assert.True(t, ChannelCapabilities.SupportsOrdering)
		assert.True(t, ChannelCapabilities.SupportsReliableDelivery())
		assert.False(t, ChannelCapabilities.SupportsPartitioning)
	})

	t.Run("KafkaCapabilities", func(t *testing.T) {
		assert.Equal(t, "kafka", KafkaCapabilities.Name)
		assert.True(t, KafkaCapabilities.SupportsPartitioning)
		assert.True(t, KafkaCapabilities.SupportsTopicBootstrap)
		assert.True(t, KafkaCapabilities.RequiresDLQEmulation())
		assert.Greater(t, KafkaCapabilities.MaxMessageSize, int64(0))
	})

	t.Run("RabbitMQCapabilities", func(t *testing.T) {
		assert.Equal(t, "rabbitmq", RabbitMQCapabilities.Name)
		assert.True(t, RabbitMQCapabilities.SupportsNativeDLQ)
		assert.False(t, RabbitMQCapabilities.SupportsPartitioning)
	})

	t.Run("NATSCapabilities", func(t *testing.T) {
		assert.Equal(t, "nats", NATSCapabilities.Name)
		assert.False(t, NATSCapabilities.SupportsAck)
		assert.True(t, NATSCapabilities.RequiresDLQEmulation())
	})

	t.Run("AWSCapabilities", func(t *testing.T) {
		assert.Equal(t, "aws", AWSCapabilities.Name)
		assert.True(t, AWSCapabilities.SupportsNativeDLQ)
		assert.Greater(t, AWSCapabilities.MaxMessageSize, int64(0))
	})

	t.Run("HTTPCapabilities", func(t *testing.T) {
		assert.Equal(t, "http", HTTPCapabilities.Name)
		assert.False(t, HTTPCapabilities.SupportsAck)
		assert.True(t, HTTPCapabilities.RequiresDLQEmulation())
	})
}

func TestGetCapabilities_PackageLevel(t *testing.T) {
	caps := GetCapabilities("nonexistent")
	assert.Equal(t, "nonexistent", caps.Name)
}

func TestCapabilities_ZeroValue(t *testing.T) {
	var caps Capabilities
	assert.True(t, caps.RequiresDLQEmulation())
	assert.False(t, caps.SupportsReliableDelivery())
	assert.False(t, caps.PreservesSessionOrder())
}
