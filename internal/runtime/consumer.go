package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	loggingpkg "github.com/jdalberg/acs/internal/runtime/logging"
	sessionpkg "github.com/jdalberg/acs/internal/runtime/session"
)

const policyHandlerName = "policy_consumer"

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// handlePolicyMessage decodes a consumed policy and forwards it to the
// supervisor intake queue. Undecodable payloads go to the poison topic when
// one is configured and are acknowledged and dropped otherwise.
func (s *Service) handlePolicyMessage(msg *message.Message) error {
	fields := loggingpkg.LogFields{
		"message_uuid":   msg.UUID,
		"correlation_id": middleware.MessageCorrelationID(msg),
	}

	policy, err := sessionpkg.DecodePolicyMessage(msg.Payload)
	if err != nil {
		s.metrics.RecordPolicy(PolicyInvalid)
		payload := loggingpkg.LossyUTF8(msg.Payload)
		fields["payload"] = payload
		s.Logger.Error("Failed to decode policy message", err, fields)
		if s.Conf.PoisonQueue != "" {
			return NewUnprocessableEventError(payload, err)
		}
		return nil
	}

	item := InboundPolicy{
		Policy:        policy,
		CorrelationID: middleware.MessageCorrelationID(msg),
		MessageID:     msg.UUID,
		ReceivedAt:    time.Now(),
	}
	if err := s.policies.Send(msg.Context(), item); err != nil {
		return fmt.Errorf("forward policy message: %w", err)
	}
	s.metrics.RecordPolicy(PolicyAccepted)
	return nil
}
