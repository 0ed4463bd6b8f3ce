package kafka

import (
	"context"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"
)

// NoCommittedOffset is returned by OffsetStore.Committed when the group has
// no progress stored for a partition.
const NoCommittedOffset int64 = -1

// OffsetStore keeps consumer progress for pinned partitions, which are read
// without joining the consumer group.
type OffsetStore interface {
	// Committed returns the next offset to read, or NoCommittedOffset.
	Committed(ctx context.Context, topic string, partition int) (int64, error)
	// Commit records next as the offset to resume from.
	Commit(ctx context.Context, topic string, partition int, next int64) error
}

// OffsetStoreFactory builds the store used by the partition subscriber. It
// returns nil when group is empty, in which case progress is not kept.
var OffsetStoreFactory = func(brokers []string, group string) OffsetStore {
	if group == "" || len(brokers) == 0 {
		return nil
	}
	return &groupOffsetStore{
		client: &kafkago.Client{Addr: kafkago.TCP(brokers...)},
		group:  group,
	}
}

// groupOffsetStore commits offsets to the broker under the consumer group id
// as a standalone consumer (generation -1, no member id).
type groupOffsetStore struct {
	client *kafkago.Client
	group  string
}

func (s *groupOffsetStore) Committed(ctx context.Context, topic string, partition int) (int64, error) {
	resp, err := s.client.OffsetFetch(ctx, &kafkago.OffsetFetchRequest{
		GroupID: s.group,
		Topics:  map[string][]int{topic: {partition}},
	})
	if err != nil {
		return NoCommittedOffset, fmt.Errorf("kafka: fetch offset for %s/%d: %w", topic, partition, err)
	}
	return committedOffset(resp, topic, partition)
}

func (s *groupOffsetStore) Commit(ctx context.Context, topic string, partition int, next int64) error {
	resp, err := s.client.OffsetCommit(ctx, &kafkago.OffsetCommitRequest{
		GroupID:      s.group,
		GenerationID: -1,
		Topics: map[string][]kafkago.OffsetCommit{
			topic: {{Partition: partition, Offset: next}},
		},
	})
	if err != nil {
		return fmt.Errorf("kafka: commit offset for %s/%d: %w", topic, partition, err)
	}
	return commitError(resp, topic, partition)
}

func committedOffset(resp *kafkago.OffsetFetchResponse, topic string, partition int) (int64, error) {
	if resp.Error != nil {
		return NoCommittedOffset, fmt.Errorf("kafka: fetch offset for %s/%d: %w", topic, partition, resp.Error)
	}
	for _, p := range resp.Topics[topic] {
		if p.Partition != partition {
			continue
		}
		if p.Error != nil {
			return NoCommittedOffset, fmt.Errorf("kafka: fetch offset for %s/%d: %w", topic, partition, p.Error)
		}
		if p.CommittedOffset < 0 {
			return NoCommittedOffset, nil
		}
		return p.CommittedOffset, nil
	}
	return NoCommittedOffset, nil
}

func commitError(resp *kafkago.OffsetCommitResponse, topic string, partition int) error {
	for _, p := range resp.Topics[topic] {
		if p.Partition == partition && p.Error != nil {
			return fmt.Errorf("kafka: commit offset for %s/%d: %w", topic, partition, p.Error)
		}
	}
	return nil
}

// startOffset picks where a pinned reader begins: right after the last
// committed record, or at the newest record when nothing was committed.
func startOffset(ctx context.Context, store OffsetStore, topic string, partition int) (int64, error) {
	if store == nil {
		return kafkago.LastOffset, nil
	}
	next, err := store.Committed(ctx, topic, partition)
	if err != nil {
		return 0, err
	}
	if next == NoCommittedOffset {
		return kafkago.LastOffset, nil
	}
	return next, nil
}
