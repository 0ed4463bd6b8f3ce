// Package transporttest provides test doubles for transport builders.
package transporttest

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
)

// Config is a field-backed transport.Config.
type Config struct {
	PubSubSystem       string
	KafkaBrokers       []string
	KafkaClientID      string
	KafkaConsumerGroup string
	PinnedPartitions   map[string]int32
	RabbitMQURL        string
	NATSURL            string
	HTTPServerAddress  string
	HTTPPublisherURL   string
	AWSRegion          string
	AWSAccountID       string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSEndpoint        string
}

func (c *Config) GetPubSubSystem() string               { return c.PubSubSystem }
func (c *Config) GetKafkaBrokers() []string             { return c.KafkaBrokers }
func (c *Config) GetKafkaClientID() string              { return c.KafkaClientID }
func (c *Config) GetKafkaConsumerGroup() string         { return c.KafkaConsumerGroup }
func (c *Config) GetPinnedPartitions() map[string]int32 { return c.PinnedPartitions }
func (c *Config) GetRabbitMQURL() string                { return c.RabbitMQURL }
func (c *Config) GetNATSURL() string                    { return c.NATSURL }
func (c *Config) GetHTTPServerAddress() string          { return c.HTTPServerAddress }
func (c *Config) GetHTTPPublisherURL() string           { return c.HTTPPublisherURL }
func (c *Config) GetAWSRegion() string                  { return c.AWSRegion }
func (c *Config) GetAWSAccountID() string               { return c.AWSAccountID }
func (c *Config) GetAWSAccessKeyID() string             { return c.AWSAccessKeyID }
func (c *Config) GetAWSSecretAccessKey() string         { return c.AWSSecretAccessKey }
func (c *Config) GetAWSEndpoint() string                { return c.AWSEndpoint }

// Publisher records published messages. Err fails every publish; TopicErr
// fails publishes to the listed topics only.
type Publisher struct {
	mu        sync.Mutex
	Published map[string][]*message.Message
	Err       error
	TopicErr  map[string]error
	Attempts  map[string]int
	Closed    bool
}

func (p *Publisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Attempts == nil {
		p.Attempts = make(map[string]int)
	}
	p.Attempts[topic]++
	if p.Err != nil {
		return p.Err
	}
	if err := p.TopicErr[topic]; err != nil {
		return err
	}
	if p.Published == nil {
		p.Published = make(map[string][]*message.Message)
	}
	p.Published[topic] = append(p.Published[topic], messages...)
	return nil
}

// Messages returns a copy of the messages published to topic.
func (p *Publisher) Messages(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*message.Message(nil), p.Published[topic]...)
}

// AttemptCount returns how many times Publish was called for topic.
func (p *Publisher) AttemptCount(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Attempts[topic]
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Subscriber hands out an unbuffered channel per topic.
type Subscriber struct {
	mu     sync.Mutex
	Topics []string
	Closed bool
}

func (s *Subscriber) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Topics = append(s.Topics, topic)
	return make(chan *message.Message), nil
}

func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}
