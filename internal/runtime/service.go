package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/jdalberg/acs/internal/runtime/config"
	"github.com/jdalberg/acs/internal/runtime/dispatch"
	errspkg "github.com/jdalberg/acs/internal/runtime/errors"
	loggingpkg "github.com/jdalberg/acs/internal/runtime/logging"
	sessionpkg "github.com/jdalberg/acs/internal/runtime/session"
	transportpkg "github.com/jdalberg/acs/internal/runtime/transport"
	kafkatransport "github.com/jdalberg/acs/transport/kafka"
)

// ensureTopics creates missing Kafka topics before the tasks start.
var ensureTopics = kafkatransport.EnsureTopics

// ServiceDependencies holds the optional collaborators that the Service can use.
// Leave fields nil to get the defaults.
type ServiceDependencies struct {
	TransportFactory transportpkg.Factory
	// OutcomeHandler is called after the built-in logging and dead-letter
	// handlers for every finished publish.
	OutcomeHandler  DeliveryOutcomeHandler
	PolicyDeliverer PolicyDeliverer

	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.

	// Registry receives the bridge metrics. A fresh registry is created when
	// nil and metrics are enabled.
	Registry *prometheus.Registry
	// Listener replaces the listener on Conf.ListenAddress.
	Listener net.Listener
}

// Service wires the device-facing HTTP ingress, the event producer, the
// policy consumer router and the supervisor that runs them.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	transport  transportpkg.Transport
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router

	transformer *sessionpkg.Transformer
	events      *dispatch.Queue[QueuedEvent]
	policies    *dispatch.Queue[InboundPolicy]
	producer    *eventProducer
	deliverer   PolicyDeliverer
	ingress     *ingressHandler
	handler     http.Handler
	listener    net.Listener

	registry       *prometheus.Registry
	metrics        *BridgeMetrics
	metricsBuilder *metrics.PrometheusMetricsBuilder

	running atomic.Bool
}

// NewService constructs a Service for the supplied configuration and builds
// its broker clients. Call Run to start it.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}

	log = log.With(loggingpkg.LogFields{"acs_instance_id": conf.InstanceID})
	wmLogger := loggingpkg.NewWatermillAdapter(log)
	log.Info("Creating bridge service",
		loggingpkg.LogFields{
			"pubsub_system": conf.PubSubSystem,
			"config":        conf.String(),
		})

	multiple, err := sessionpkg.ParseMultipleInformPolicy(conf.MultipleInformPolicy)
	if err != nil {
		return nil, errspkg.NewConfigValidationError(err)
	}
	transformer, err := sessionpkg.NewTransformer(conf.InstanceID, sessionpkg.WithMultipleInformPolicy(multiple))
	if err != nil {
		return nil, err
	}

	s := &Service{
		Conf:        conf,
		Logger:      log,
		transformer: transformer,
		events:      dispatch.New[QueuedEvent](conf.DispatchCapacity),
		policies:    dispatch.New[InboundPolicy](conf.PolicyCapacity),
		listener:    deps.Listener,
	}

	if conf.MetricsEnabled {
		s.registry = deps.Registry
		if s.registry == nil {
			s.registry = prometheus.NewRegistry()
		}
		if s.metrics, err = NewBridgeMetrics(s.registry); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		s.metricsBuilder = newMetricsBuilder(s)
	}

	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	transport, err := factory.Build(ctx, conf, wmLogger)
	if err != nil {
		return nil, err
	}
	s.transport = transport
	s.publisher = transport.Publisher
	s.subscriber = transport.Subscriber

	if err := s.wire(deps, wmLogger, multiple); err != nil {
		_ = transport.Close()
		return nil, err
	}

	s.warnAboutCapabilities()
	return s, nil
}

func (s *Service) wire(deps ServiceDependencies, wmLogger watermill.LoggerAdapter, multiple sessionpkg.MultipleInformPolicy) error {
	if s.metricsBuilder != nil {
		decorated, err := s.metricsBuilder.DecoratePublisher(s.publisher)
		if err != nil {
			return fmt.Errorf("decorate publisher: %w", err)
		}
		s.publisher = decorated
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: s.Conf.ShutdownTimeout}, wmLogger)
	if err != nil {
		return err
	}
	s.router = router
	s.router.AddConsumerHandler(policyHandlerName, s.Conf.PolicyQueueTopic, s.subscriber, s.handlePolicyMessage)

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		return err
	}

	s.producer = &eventProducer{
		publisher: s.publisher,
		topic:     s.Conf.InformEventsTopic,
		queue:     s.events,
		retry: RetryPolicy{
			MaxRetries:      s.Conf.RetryMaxRetries,
			InitialInterval: s.Conf.RetryInitialInterval,
			MaxInterval:     s.Conf.RetryMaxInterval,
		},
		outcomes: s.outcomeHandlers(deps.OutcomeHandler),
		metrics:  s.metrics,
		logger:   s.Logger,
	}

	s.deliverer = deps.PolicyDeliverer
	if s.deliverer == nil {
		s.deliverer = LoggingPolicyDeliverer{Logger: s.Logger}
	}

	s.ingress = &ingressHandler{
		transformer: s.transformer,
		multiple:    multiple,
		queue:       s.events,
		sendTimeout: s.Conf.InformTimeout,
		maxBody:     s.Conf.MaxBodyBytes,
		metrics:     s.metrics,
		logger:      s.Logger,
	}
	s.handler = s.ingress.routes()
	return nil
}

func (s *Service) outcomeHandlers(extra DeliveryOutcomeHandler) DeliveryOutcomeHandler {
	handlers := OutcomeHandlers{LoggingOutcomeHandler{Logger: s.Logger}}
	if s.Conf.DeadLetterTopic != "" {
		handlers = append(handlers, DeadLetterHandler{
			Publisher: s.publisher,
			Topic:     s.Conf.DeadLetterTopic,
			Logger:    s.Logger,
			Metrics:   s.metrics.deadLetter(),
		})
	}
	if extra != nil {
		handlers = append(handlers, extra)
	}
	return handlers
}

// warnAboutCapabilities logs settings the selected transport cannot honour.
func (s *Service) warnAboutCapabilities() {
	caps := transportpkg.GetCapabilities(s.Conf.PubSubSystem)
	fields := loggingpkg.LogFields{"pubsub_system": s.Conf.PubSubSystem}

	if !caps.PreservesSessionOrder() {
		s.Logger.Info("Transport does not keep one session's events in order", fields)
	}
	if len(s.Conf.GetPinnedPartitions()) > 0 && !caps.SupportsPartitioning {
		s.Logger.Info("Transport ignores pinned partitions", fields)
	}
	if s.Conf.KafkaEnsureTopics && !caps.SupportsTopicBootstrap {
		s.Logger.Info("Transport cannot create topics, KAFKA_ENSURE_TOPICS ignored", fields)
	}
	if !caps.Fits(int(s.Conf.MaxBodyBytes)) {
		s.Logger.Info("Max body size exceeds the transport message limit", loggingpkg.LogFields{
			"pubsub_system":    s.Conf.PubSubSystem,
			"max_body_bytes":   s.Conf.MaxBodyBytes,
			"max_message_size": caps.MaxMessageSize,
		})
	}
	if s.Conf.PoisonQueue != "" && !caps.SupportsReliableDelivery() {
		s.Logger.Info("Transport cannot redeliver policy messages, failures go straight to the poison topic", fields)
	}
	if s.Conf.DeadLetterTopic == "" && caps.RequiresDLQEmulation() {
		s.Logger.Info("No dead letter topic configured, failed events will be dropped", fields)
	}
}

// Handler returns the device-facing HTTP handler.
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Registry returns the metrics registry, nil when metrics are disabled.
func (s *Service) Registry() *prometheus.Registry {
	return s.registry
}

// ensureKafkaTopics creates the bridge topics when asked to and the transport
// is Kafka.
func (s *Service) ensureKafkaTopics(ctx context.Context) error {
	if !s.Conf.KafkaEnsureTopics || s.Conf.PubSubSystem != configpkg.PubSubKafka {
		return nil
	}

	pinned := s.Conf.GetPinnedPartitions()
	topics := s.Conf.Topics()
	specs := make([]kafkatransport.TopicSpec, 0, len(topics))
	for _, topic := range topics {
		partitions := s.Conf.KafkaTopicPartitions
		if p, ok := pinned[topic]; ok {
			partitions = max(partitions, int(p)+1)
		}
		specs = append(specs, kafkatransport.TopicSpec{
			Name:              topic,
			Partitions:        partitions,
			ReplicationFactor: s.Conf.KafkaReplicationFactor,
		})
	}

	s.Logger.Info("Ensuring kafka topics", loggingpkg.LogFields{"topics": topics})
	if err := ensureTopics(ctx, s.Conf.KafkaBrokers, specs); err != nil {
		return fmt.Errorf("ensure kafka topics: %w", err)
	}
	return nil
}

func (s *Service) listen() (net.Listener, error) {
	if s.listener != nil {
		return s.listener, nil
	}
	ln, err := net.Listen("tcp", s.Conf.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.Conf.ListenAddress, err)
	}
	return ln, nil
}

func ignoreServerClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
