package runtime

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/jdalberg/acs/internal/runtime/errors"
	idspkg "github.com/jdalberg/acs/internal/runtime/ids"
	jsonpkg "github.com/jdalberg/acs/internal/runtime/jsoncodec"
	metadatapkg "github.com/jdalberg/acs/internal/runtime/metadata"
	sessionpkg "github.com/jdalberg/acs/internal/runtime/session"
)

// NewMessageFromEvent converts a SessionEvent into a Watermill message with
// the standard metadata required by downstream consumers. Caller supplied
// metadata is kept; the session and instance keys always reflect the event.
func NewMessageFromEvent(event sessionpkg.SessionEvent, metadata metadatapkg.Metadata) (*message.Message, error) {
	if event.SessionID == "" {
		return nil, errspkg.ErrSessionIDRequired
	}

	payload, err := jsonpkg.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}

	md := metadata.WithAll(metadatapkg.Metadata{
		metadatapkg.KeySessionID:   event.SessionID,
		metadatapkg.KeyInstanceID:  event.InstanceID,
		metadatapkg.KeyEventSchema: sessionpkg.EventMessageSchema,
	})
	if md.Get(metadatapkg.KeyCorrelationID) == "" {
		md[metadatapkg.KeyCorrelationID] = idspkg.NewCorrelationID()
	}

	msg := message.NewMessage(idspkg.NewMessageID(), payload)
	msg.Metadata = metadatapkg.ToWatermill(md)
	return msg, nil
}

// PublishEvent marshals the event and publishes it to the provided topic.
func PublishEvent(ctx context.Context, publisher message.Publisher, topic string, event sessionpkg.SessionEvent, metadata metadatapkg.Metadata) error {
	if publisher == nil {
		return errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return errspkg.ErrTopicRequired
	}

	msg, err := NewMessageFromEvent(event, metadata)
	if err != nil {
		return err
	}

	if ctx != nil {
		msg.SetContext(ctx)
	}

	return publisher.Publish(topic, msg)
}
