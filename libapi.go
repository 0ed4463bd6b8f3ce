package acs

import (
	"github.com/jdalberg/acs/internal/cwmp"
	runtimepkg "github.com/jdalberg/acs/internal/runtime"
	configpkg "github.com/jdalberg/acs/internal/runtime/config"
	errspkg "github.com/jdalberg/acs/internal/runtime/errors"
	idspkg "github.com/jdalberg/acs/internal/runtime/ids"
	jsoncodec "github.com/jdalberg/acs/internal/runtime/jsoncodec"
	loggingpkg "github.com/jdalberg/acs/internal/runtime/logging"
	metadatapkg "github.com/jdalberg/acs/internal/runtime/metadata"
	sessionpkg "github.com/jdalberg/acs/internal/runtime/session"
	transportpkg "github.com/jdalberg/acs/internal/runtime/transport"
	newtransport "github.com/jdalberg/acs/transport"
)

type (
	Config               = configpkg.Config
	Service              = runtimepkg.Service
	ServiceDependencies  = runtimepkg.ServiceDependencies
	Transport            = transportpkg.Transport
	TransportFactory     = transportpkg.Factory
	TransportFactoryFunc = transportpkg.FactoryFunc

	Envelope    = cwmp.Envelope
	BodyElement = cwmp.BodyElement
	Inform      = cwmp.Inform

	SessionEvent         = sessionpkg.SessionEvent
	SessionType          = sessionpkg.SessionType
	SessionState         = sessionpkg.SessionState
	DeviceIdentity       = sessionpkg.DeviceIdentity
	Transformer          = sessionpkg.Transformer
	TransformerOption    = sessionpkg.TransformerOption
	MultipleInformPolicy = sessionpkg.MultipleInformPolicy

	PolicyMessage         = sessionpkg.PolicyMessage
	PolicyMessageResponse = sessionpkg.PolicyMessageResponse
	PolicyType            = sessionpkg.PolicyType

	InboundPolicy       = runtimepkg.InboundPolicy
	PolicyDeliverer     = runtimepkg.PolicyDeliverer
	PolicyDelivererFunc = runtimepkg.PolicyDelivererFunc

	QueuedEvent                = runtimepkg.QueuedEvent
	RetryPolicy                = runtimepkg.RetryPolicy
	DeliveryOutcome            = runtimepkg.DeliveryOutcome
	DeliveryOutcomeHandler     = runtimepkg.DeliveryOutcomeHandler
	DeliveryOutcomeHandlerFunc = runtimepkg.DeliveryOutcomeHandlerFunc
	OutcomeHandlers            = runtimepkg.OutcomeHandlers
	LoggingOutcomeHandler      = runtimepkg.LoggingOutcomeHandler
	DeadLetterHandler          = runtimepkg.DeadLetterHandler

	MiddlewareBuilder      = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration = runtimepkg.MiddlewareRegistration

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	TaskExit                = runtimepkg.TaskExit
	UnprocessableEventError = runtimepkg.UnprocessableEventError
	ConfigValidationError   = errspkg.ConfigValidationError
	ParseError              = cwmp.ParseError

	BridgeMetrics             = runtimepkg.BridgeMetrics
	DeadLetterMetrics         = runtimepkg.DeadLetterMetrics
	DeadLetterTopicMetrics    = runtimepkg.DeadLetterTopicMetrics
	DeadLetterMetricsSnapshot = runtimepkg.DeadLetterMetricsSnapshot

	Capabilities = transportpkg.Capabilities

	TransportBuilder  = newtransport.Builder
	TransportConfig   = newtransport.Config
	TransportRegistry = newtransport.Registry
)

var (
	NewService     = runtimepkg.NewService
	DefaultConfig  = configpkg.Default
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	ParseEnvelope              = cwmp.ParseBytes
	NewTransformer             = sessionpkg.NewTransformer
	WithMultipleInformPolicy   = sessionpkg.WithMultipleInformPolicy
	ParseMultipleInformPolicy  = sessionpkg.ParseMultipleInformPolicy
	DecodePolicyMessage        = sessionpkg.DecodePolicyMessage
	NewPolicyMessageResponse   = sessionpkg.NewPolicyMessageResponse
	NewMessageFromEvent        = runtimepkg.NewMessageFromEvent
	PublishEvent               = runtimepkg.PublishEvent
	NewUnprocessableEventError = runtimepkg.NewUnprocessableEventError

	NewBridgeMetrics     = runtimepkg.NewBridgeMetrics
	NewDeadLetterMetrics = runtimepkg.NewDeadLetterMetrics

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	PoisonQueueMiddleware   = runtimepkg.PoisonQueueMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	GetCapabilities = transportpkg.GetCapabilities

	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal

	ErrServiceRunning     = errspkg.ErrServiceRunning
	ErrPublisherRequired  = errspkg.ErrPublisherRequired
	ErrTopicRequired      = errspkg.ErrTopicRequired
	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrEnvelopeRequired   = errspkg.ErrEnvelopeRequired
	ErrSessionIDRequired  = errspkg.ErrSessionIDRequired
	ErrNoInformPayload    = errspkg.ErrNoInformPayload
	ErrMultipleInforms    = errspkg.ErrMultipleInforms
	ErrInvalidDeviceID    = errspkg.ErrInvalidDeviceID
	ErrDispatchClosed     = errspkg.ErrDispatchClosed
	ErrInvalidPolicy      = errspkg.ErrInvalidPolicy
	ErrUnknownPolicyType  = errspkg.ErrUnknownPolicyType
	ErrInstanceIDRequired = errspkg.ErrInstanceIDRequired

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewJSONLogger        = loggingpkg.NewJSONLogger
	ParseLogLevel        = loggingpkg.ParseLevel

	NewMetadata      = metadatapkg.New
	NewCorrelationID = idspkg.NewCorrelationID
)

// Supervised task names reported in TaskExit.
const (
	TaskWebServer      = runtimepkg.TaskWebServer
	TaskPolicyConsumer = runtimepkg.TaskPolicyConsumer
	TaskEventProducer  = runtimepkg.TaskEventProducer
)

// Metadata keys written on every outbound session event.
const (
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeySessionID     = metadatapkg.KeySessionID
	MetadataKeyInstanceID    = metadatapkg.KeyInstanceID
	MetadataKeyEventSchema   = metadatapkg.KeyEventSchema
	MetadataKeyReceivedAt    = metadatapkg.KeyReceivedAt
	MetadataKeyPartitionKey  = metadatapkg.KeyPartitionKey
)

const (
	UseFirstInform        = sessionpkg.UseFirstInform
	RejectMultipleInforms = sessionpkg.RejectMultipleInforms
)

// Transform parses raw and turns its Inform into a SessionEvent stamped with
// instanceID, using the default transformer options.
func Transform(raw []byte, instanceID string) (SessionEvent, error) {
	env, err := cwmp.ParseBytes(raw)
	if err != nil {
		return SessionEvent{}, err
	}
	t, err := sessionpkg.NewTransformer(instanceID)
	if err != nil {
		return SessionEvent{}, err
	}
	return t.Transform(env)
}
