package runtime

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jdalberg/acs/internal/runtime/dispatch"
	errspkg "github.com/jdalberg/acs/internal/runtime/errors"
	loggingpkg "github.com/jdalberg/acs/internal/runtime/logging"
	metadatapkg "github.com/jdalberg/acs/internal/runtime/metadata"
	sessionpkg "github.com/jdalberg/acs/internal/runtime/session"
)

// QueuedEvent is what the ingress handler hands to the producer.
type QueuedEvent struct {
	Event         sessionpkg.SessionEvent
	CorrelationID string
	ReceivedAt    time.Time
}

// RetryPolicy bounds the publish retries of a single event.
type RetryPolicy struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// eventProducer drains the dispatch queue onto the outbound topic.
type eventProducer struct {
	publisher message.Publisher
	topic     string
	queue     *dispatch.Queue[QueuedEvent]
	retry     RetryPolicy
	outcomes  DeliveryOutcomeHandler
	metrics   *BridgeMetrics
	logger    loggingpkg.ServiceLogger
}

// run receives until the queue is closed and drained, or ctx ends. The queue
// is detached on return so senders stop waiting for a receiver that is gone.
func (p *eventProducer) run(ctx context.Context) error {
	defer p.queue.Detach()

	for {
		item, err := p.queue.Receive(ctx)
		if err != nil {
			if errors.Is(err, errspkg.ErrDispatchClosed) {
				p.logger.Info("Dispatch queue closed, producer stopping", nil)
				return nil
			}
			return err
		}
		p.metrics.SetQueueDepth(p.queue.Len())
		p.publish(ctx, item)
	}
}

func (p *eventProducer) publish(ctx context.Context, item QueuedEvent) {
	ctx, span := tracer.Start(ctx, "PublishSessionEvent",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", p.topic),
			attribute.String("acs.session_id", item.Event.SessionID),
		),
	)
	defer span.End()

	outcome := DeliveryOutcome{
		Event:         item.Event,
		Topic:         p.topic,
		CorrelationID: item.CorrelationID,
		ReceivedAt:    item.ReceivedAt,
	}

	md := metadatapkg.New(metadatapkg.KeyCorrelationID, item.CorrelationID)
	if !item.ReceivedAt.IsZero() {
		md[metadatapkg.KeyReceivedAt] = item.ReceivedAt.UTC().Format(time.RFC3339Nano)
	}

	msg, err := NewMessageFromEvent(item.Event, md)
	if err != nil {
		outcome.Err = err
		p.finish(ctx, span, outcome)
		return
	}
	msg.SetContext(ctx)
	outcome.Message = msg
	outcome.MessageID = msg.UUID

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		outcome.Attempts++
		return struct{}{}, p.publisher.Publish(p.topic, msg)
	},
		backoff.WithBackOff(p.retry.backOff()),
		backoff.WithMaxTries(uint(p.retry.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			p.logger.Debug("Publish failed, retrying", loggingpkg.LogFields{
				"error":      err.Error(),
				"retry_in":   next.String(),
				"attempt":    outcome.Attempts,
				"session_id": item.Event.SessionID,
			})
		}),
	)
	outcome.Err = err
	p.finish(ctx, span, outcome)
}

func (p *eventProducer) finish(ctx context.Context, span trace.Span, outcome DeliveryOutcome) {
	span.SetAttributes(attribute.Int("acs.publish_attempts", outcome.Attempts))
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, "publish failed")
	}
	p.metrics.RecordPublish(outcome.Err)
	p.outcomes.HandleOutcome(ctx, outcome)
}
