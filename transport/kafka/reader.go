package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/jdalberg/acs/internal/runtime/ids"
)

const (
	readerMinBytes  = 1
	readerMaxBytes  = 10_000_000 // 10MB
	readerMaxWait   = 500 * time.Millisecond
	nackResendSleep = 100 * time.Millisecond
	commitTimeout   = 5 * time.Second
)

// PartitionReader is the subset of *kafkago.Reader the partition subscriber uses.
type PartitionReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	SetOffset(offset int64) error
	Close() error
}

// ReaderFactory creates the reader for one pinned topic partition.
var ReaderFactory = func(cfg kafkago.ReaderConfig) (PartitionReader, error) {
	return kafkago.NewReader(cfg), nil
}

// partitionSubscriber reads a single partition per topic without joining a
// consumer group. Acked offsets are committed under the group id, so a
// restarted instance resumes after the last acked record.
type partitionSubscriber struct {
	brokers []string
	pinned  map[string]int32
	offsets OffsetStore
	logger  watermill.LoggerAdapter

	mu      sync.Mutex
	closed  bool
	readers []PartitionReader
	cancels []context.CancelFunc
	wg      sync.WaitGroup
}

func newPartitionSubscriber(brokers []string, pinned map[string]int32, offsets OffsetStore, logger watermill.LoggerAdapter) *partitionSubscriber {
	return &partitionSubscriber{brokers: brokers, pinned: pinned, offsets: offsets, logger: logger}
}

func (s *partitionSubscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	partition, ok := s.pinned[topic]
	if !ok {
		return nil, fmt.Errorf("kafka: topic %q has no pinned partition", topic)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("kafka: partition subscriber closed")
	}

	reader, err := ReaderFactory(kafkago.ReaderConfig{
		Brokers:   s.brokers,
		Topic:     topic,
		Partition: int(partition),
		MinBytes:  readerMinBytes,
		MaxBytes:  readerMaxBytes,
		MaxWait:   readerMaxWait,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka: open reader for %s/%d: %w", topic, partition, err)
	}

	start, err := startOffset(ctx, s.offsets, topic, int(partition))
	if err == nil {
		err = reader.SetOffset(start)
	}
	if err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("kafka: seek %s/%d: %w", topic, partition, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.readers = append(s.readers, reader)
	s.cancels = append(s.cancels, cancel)

	out := make(chan *message.Message)
	fields := watermill.LogFields{"topic": topic, "partition": partition, "start_offset": start}
	s.logger.Info("Subscribing to pinned kafka partition", fields)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		s.consume(ctx, reader, topic, int(partition), out, fields)
	}()

	return out, nil
}

func (s *partitionSubscriber) consume(ctx context.Context, reader PartitionReader, topic string, partition int, out chan<- *message.Message, fields watermill.LogFields) {
	for {
		record, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			s.logger.Error("Reading pinned kafka partition failed", err, fields)
			if !sleepCtx(ctx, nackResendSleep) {
				return
			}
			continue
		}

		recordFields := fields.Add(watermill.LogFields{"offset": record.Offset})
		if !deliver(ctx, toMessage(record), out, s.logger, recordFields) {
			return
		}
		s.commit(ctx, topic, partition, record.Offset+1, recordFields)
	}
}

// commit stores next as the resume point. A failed commit only means the
// record is delivered again after a restart.
func (s *partitionSubscriber) commit(ctx context.Context, topic string, partition int, next int64, fields watermill.LogFields) {
	if s.offsets == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), commitTimeout)
	defer cancel()
	if err := s.offsets.Commit(ctx, topic, partition, next); err != nil {
		s.logger.Error("Committing pinned kafka offset failed", err, fields)
	}
}

// deliver hands msg to the router and waits for the ack, resending on nack.
func deliver(ctx context.Context, msg *message.Message, out chan<- *message.Message, logger watermill.LoggerAdapter, fields watermill.LogFields) bool {
	for {
		attempt := msg.Copy()
		attempt.SetContext(ctx)

		select {
		case out <- attempt:
		case <-ctx.Done():
			return false
		}

		select {
		case <-attempt.Acked():
			return true
		case <-attempt.Nacked():
			logger.Debug("Message nacked, resending", fields)
			if !sleepCtx(ctx, nackResendSleep) {
				return false
			}
		case <-ctx.Done():
			return false
		}
	}
}

func toMessage(record kafkago.Message) *message.Message {
	uuid := ""
	md := make(message.Metadata, len(record.Headers))
	for _, h := range record.Headers {
		if h.Key == wmkafka.UUIDHeaderKey {
			uuid = string(h.Value)
			continue
		}
		md.Set(h.Key, string(h.Value))
	}
	if uuid == "" {
		uuid = ids.NewMessageID()
	}

	msg := message.NewMessage(uuid, record.Value)
	msg.Metadata = md
	return msg
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *partitionSubscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, cancel := range s.cancels {
		cancel()
	}
	readers := s.readers
	s.mu.Unlock()

	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.wg.Wait()
	return errors.Join(errs...)
}

// partitionRouter sends pinned topics to the partition subscriber and every
// other topic to the consumer group subscriber.
type partitionRouter struct {
	group  message.Subscriber
	pinned message.Subscriber
	topics map[string]int32
}

func newPartitionRouter(group, pinned message.Subscriber, topics map[string]int32) *partitionRouter {
	return &partitionRouter{group: group, pinned: pinned, topics: topics}
}

func (r *partitionRouter) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if _, ok := r.topics[topic]; ok {
		return r.pinned.Subscribe(ctx, topic)
	}
	return r.group.Subscribe(ctx, topic)
}

func (r *partitionRouter) Close() error {
	return errors.Join(r.pinned.Close(), r.group.Close())
}
