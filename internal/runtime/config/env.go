package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// FromEnv returns the defaults overlaid with the process environment.
func FromEnv() (*Config, error) {
	cfg := Default()
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays every recognised, non-empty variable onto cfg. Malformed
// numeric, boolean and duration values are collected and returned together;
// the fields they target keep their previous value.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	e := envReader{lookup: lookup}

	e.str("POD_NAME", &cfg.InstanceID)
	e.str("CONTROLLER_ENDPOINT", &cfg.ControllerEndpoint)
	e.str("ACS_LISTEN_ADDRESS", &cfg.ListenAddress)
	e.int64("ACS_MAX_BODY_BYTES", &cfg.MaxBodyBytes)
	e.str("ACS_LOG_LEVEL", &cfg.LogLevel)
	e.str("ACS_PUBSUB_SYSTEM", &cfg.PubSubSystem)

	e.list("KAFKA_BROKERS", &cfg.KafkaBrokers)
	e.str("KAFKA_CLIENT_ID", &cfg.KafkaClientID)
	e.str("KAFKA_CONSUMER_GROUP", &cfg.KafkaConsumerGroup)
	e.str("KAFKA_INFORM_EVENTS_TOPIC", &cfg.InformEventsTopic)
	e.int32("KAFKA_INFORM_EVENTS_PARTITION", &cfg.InformEventsPartition)
	e.str("KAFKA_POLICY_QUEUE_TOPIC", &cfg.PolicyQueueTopic)
	e.int32("KAFKA_POLICY_QUEUE_PARTITION", &cfg.PolicyQueuePartition)
	e.bool("KAFKA_ENSURE_TOPICS", &cfg.KafkaEnsureTopics)
	e.int("KAFKA_TOPIC_PARTITIONS", &cfg.KafkaTopicPartitions)
	e.int("KAFKA_REPLICATION_FACTOR", &cfg.KafkaReplicationFactor)

	e.str("ACS_DEAD_LETTER_TOPIC", &cfg.DeadLetterTopic)
	e.str("ACS_POLICY_POISON_TOPIC", &cfg.PoisonQueue)
	e.int("ACS_DISPATCH_CAPACITY", &cfg.DispatchCapacity)
	e.int("ACS_POLICY_CAPACITY", &cfg.PolicyCapacity)
	e.duration("ACS_INFORM_TIMEOUT", &cfg.InformTimeout)
	e.str("ACS_MULTIPLE_INFORM_POLICY", &cfg.MultipleInformPolicy)
	e.int("ACS_PUBLISH_MAX_RETRIES", &cfg.RetryMaxRetries)
	e.duration("ACS_PUBLISH_INITIAL_INTERVAL", &cfg.RetryInitialInterval)
	e.duration("ACS_PUBLISH_MAX_INTERVAL", &cfg.RetryMaxInterval)
	e.duration("ACS_SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)

	e.bool("ACS_METRICS_ENABLED", &cfg.MetricsEnabled)
	e.int("ACS_METRICS_PORT", &cfg.MetricsPort)

	e.str("NATS_URL", &cfg.NATSURL)
	e.str("RABBITMQ_URL", &cfg.RabbitMQURL)
	e.str("ACS_HTTP_SUBSCRIBER_ADDRESS", &cfg.HTTPServerAddress)
	e.str("ACS_HTTP_PUBLISHER_URL", &cfg.HTTPPublisherURL)
	e.str("AWS_REGION", &cfg.AWSRegion)
	e.str("AWS_ACCOUNT_ID", &cfg.AWSAccountID)
	e.str("AWS_ACCESS_KEY_ID", &cfg.AWSAccessKeyID)
	e.str("AWS_SECRET_ACCESS_KEY", &cfg.AWSSecretAccessKey)
	e.str("AWS_ENDPOINT", &cfg.AWSEndpoint)

	return errors.Join(e.errs...)
}

type envReader struct {
	lookup LookupFunc
	errs   []error
}

func (e *envReader) value(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key, raw string, err error) {
	e.errs = append(e.errs, fmt.Errorf("env %s=%q: %w", key, raw, err))
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.value(key); ok {
		*dst = v
	}
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (e *envReader) int(key string, dst *int) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) int32(key string, dst *int32) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = int32(n)
}

func (e *envReader) int64(key string, dst *int64) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = n
}

func (e *envReader) bool(key string, dst *bool) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = b
}

func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.value(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = d
}
