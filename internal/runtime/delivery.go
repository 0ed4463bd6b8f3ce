package runtime

import (
	"context"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	idspkg "github.com/jdalberg/acs/internal/runtime/ids"
	loggingpkg "github.com/jdalberg/acs/internal/runtime/logging"
	metadatapkg "github.com/jdalberg/acs/internal/runtime/metadata"
	sessionpkg "github.com/jdalberg/acs/internal/runtime/session"
)

// DeliveryOutcome is the result of publishing one session event.
type DeliveryOutcome struct {
	Event         sessionpkg.SessionEvent
	Topic         string
	MessageID     string
	CorrelationID string
	ReceivedAt    time.Time
	// Attempts is zero when the event could not be turned into a message.
	Attempts int
	Err      error

	// Message is the message that was, or failed to be, published.
	Message *message.Message
}

func (o DeliveryOutcome) Delivered() bool {
	return o.Err == nil
}

// DeliveryOutcomeHandler is told about every publish the producer finishes,
// successful or not. Handlers run on the producer goroutine.
type DeliveryOutcomeHandler interface {
	HandleOutcome(ctx context.Context, outcome DeliveryOutcome)
}

// DeliveryOutcomeHandlerFunc adapts a function to DeliveryOutcomeHandler.
type DeliveryOutcomeHandlerFunc func(ctx context.Context, outcome DeliveryOutcome)

func (f DeliveryOutcomeHandlerFunc) HandleOutcome(ctx context.Context, outcome DeliveryOutcome) {
	f(ctx, outcome)
}

// OutcomeHandlers fans an outcome out to every handler in order.
type OutcomeHandlers []DeliveryOutcomeHandler

func (h OutcomeHandlers) HandleOutcome(ctx context.Context, outcome DeliveryOutcome) {
	for _, handler := range h {
		if handler != nil {
			handler.HandleOutcome(ctx, outcome)
		}
	}
}

// LoggingOutcomeHandler logs delivered events at debug and failed ones as
// errors.
type LoggingOutcomeHandler struct {
	Logger loggingpkg.ServiceLogger
}

func (h LoggingOutcomeHandler) HandleOutcome(_ context.Context, outcome DeliveryOutcome) {
	fields := outcomeFields(outcome)
	if outcome.Delivered() {
		h.Logger.Debug("Published session event", fields)
		return
	}
	h.Logger.Error("Failed to publish session event", outcome.Err, fields)
}

// DeadLetterHandler republishes failed events to a dead-letter topic with the
// failure annotated in metadata.
type DeadLetterHandler struct {
	Publisher message.Publisher
	Topic     string
	Logger    loggingpkg.ServiceLogger
	Metrics   *DeadLetterMetrics
}

func (h DeadLetterHandler) HandleOutcome(ctx context.Context, outcome DeliveryOutcome) {
	if outcome.Delivered() || outcome.Message == nil || h.Topic == "" {
		return
	}

	md := metadatapkg.FromWatermill(outcome.Message.Metadata).WithAll(metadatapkg.Metadata{
		metadatapkg.KeyError:         outcome.Err.Error(),
		metadatapkg.KeyOriginalTopic: outcome.Topic,
		metadatapkg.KeyAttempts:      strconv.Itoa(outcome.Attempts),
	})
	msg := message.NewMessage(idspkg.NewMessageID(), outcome.Message.Payload)
	msg.Metadata = metadatapkg.ToWatermill(md)
	msg.SetContext(ctx)

	fields := outcomeFields(outcome)
	fields["dead_letter_topic"] = h.Topic

	if err := h.Publisher.Publish(h.Topic, msg); err != nil {
		h.Metrics.RecordDeadLetterFailure(h.Topic)
		h.Logger.Error("Failed to dead-letter session event, event dropped", err, fields)
		return
	}

	var age time.Duration
	if !outcome.ReceivedAt.IsZero() {
		age = time.Since(outcome.ReceivedAt)
	}
	h.Metrics.RecordDeadLettered(h.Topic, outcome.Topic, outcome.Attempts, age)
	h.Logger.Info("Dead-lettered session event", fields)
}

func outcomeFields(outcome DeliveryOutcome) loggingpkg.LogFields {
	return loggingpkg.LogFields{
		"topic":          outcome.Topic,
		"message_uuid":   outcome.MessageID,
		"correlation_id": outcome.CorrelationID,
		"session_id":     outcome.Event.SessionID,
		"attempts":       outcome.Attempts,
	}
}
