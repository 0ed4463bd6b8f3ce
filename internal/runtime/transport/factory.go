package transport

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/jdalberg/acs/internal/runtime/config"
	newtransport "github.com/jdalberg/acs/transport"

	// Import all transport packages to register them.
	_ "github.com/jdalberg/acs/transport/aws"
	_ "github.com/jdalberg/acs/transport/channel"
	_ "github.com/jdalberg/acs/transport/http"
	_ "github.com/jdalberg/acs/transport/kafka"
	_ "github.com/jdalberg/acs/transport/nats"
	_ "github.com/jdalberg/acs/transport/rabbitmq"
)

// Transport combines a publisher and subscriber pair produced by a factory.
type Transport = newtransport.Transport

// Factory abstracts how the bridge initialises its broker clients.
type Factory interface {
	Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error)

// Build calls f.
func (f FactoryFunc) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	return f(ctx, conf, logger)
}

// DefaultFactory returns the factory backed by the transport registry.
func DefaultFactory() Factory {
	return defaultFactory{registry: newtransport.DefaultRegistry}
}

type defaultFactory struct {
	registry *newtransport.Registry
}

func (f defaultFactory) Build(ctx context.Context, conf *config.Config, logger watermill.LoggerAdapter) (Transport, error) {
	if conf == nil {
		return Transport{}, fmt.Errorf("config is required")
	}

	t, err := f.registry.Build(ctx, conf, logger)
	if err != nil {
		return Transport{}, fmt.Errorf("build %s transport: %w", conf.GetPubSubSystem(), err)
	}
	if t.Publisher == nil || t.Subscriber == nil {
		_ = t.Close()
		return Transport{}, fmt.Errorf("build %s transport: incomplete publisher/subscriber pair", conf.GetPubSubSystem())
	}
	return t, nil
}
