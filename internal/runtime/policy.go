package runtime

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	loggingpkg "github.com/jdalberg/acs/internal/runtime/logging"
	sessionpkg "github.com/jdalberg/acs/internal/runtime/session"
)

// InboundPolicy is a decoded policy message on its way to the supervisor.
type InboundPolicy struct {
	Policy        sessionpkg.PolicyMessage
	CorrelationID string
	MessageID     string
	ReceivedAt    time.Time
}

// PolicyDeliverer takes policies from the supervisor intake loop towards the
// device. Errors are logged and never stop the bridge.
type PolicyDeliverer interface {
	DeliverPolicy(ctx context.Context, policy InboundPolicy) error
}

// PolicyDelivererFunc adapts a function to PolicyDeliverer.
type PolicyDelivererFunc func(ctx context.Context, policy InboundPolicy) error

func (f PolicyDelivererFunc) DeliverPolicy(ctx context.Context, policy InboundPolicy) error {
	return f(ctx, policy)
}

// LoggingPolicyDeliverer is the default deliverer. There is no device session
// store yet, so policies are only logged.
type LoggingPolicyDeliverer struct {
	Logger loggingpkg.ServiceLogger
}

func (d LoggingPolicyDeliverer) DeliverPolicy(_ context.Context, policy InboundPolicy) error {
	d.Logger.Debug("No device delivery path, policy logged only", policyFields(policy))
	return nil
}

// intake handles one policy taken off the intake queue by the supervisor.
func (s *Service) intake(ctx context.Context, policy InboundPolicy) {
	ctx, span := tracer.Start(ctx, "DeliverPolicy")
	defer span.End()
	span.SetAttributes(
		attribute.String("acs.session_id", policy.Policy.SessionID),
		attribute.String("acs.policy_type", string(policy.Policy.PolicyType)),
	)

	fields := policyFields(policy)
	s.Logger.Info("Received policy message", fields)

	if err := s.deliverer.DeliverPolicy(ctx, policy); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		s.Logger.Error("Failed to deliver policy message", err, fields)
	}
}

func policyFields(policy InboundPolicy) loggingpkg.LogFields {
	return loggingpkg.LogFields{
		"correlation_id": policy.CorrelationID,
		"message_uuid":   policy.MessageID,
		"session_id":     policy.Policy.SessionID,
		"device_id":      policy.Policy.DeviceID,
		"policy_type":    string(policy.Policy.PolicyType),
	}
}
