package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(cfg, mapLookup(map[string]string{
		"POD_NAME":                      "acs-7",
		"KAFKA_BROKERS":                 "k1:9092, k2:9092,",
		"KAFKA_INFORM_EVENTS_TOPIC":     "informs",
		"KAFKA_INFORM_EVENTS_PARTITION": "0",
		"KAFKA_POLICY_QUEUE_PARTITION":  "4",
		"KAFKA_ENSURE_TOPICS":           "true",
		"ACS_INFORM_TIMEOUT":            "0s",
		"ACS_DISPATCH_CAPACITY":         "5",
		"ACS_MULTIPLE_INFORM_POLICY":    "reject",
		"ACS_METRICS_ENABLED":           "1",
		"AWS_SECRET_ACCESS_KEY":         "shh",
	}))
	require.NoError(t, err)

	assert.Equal(t, "acs-7", cfg.InstanceID)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "informs", cfg.InformEventsTopic)
	assert.Equal(t, int32(0), cfg.InformEventsPartition)
	assert.Equal(t, int32(4), cfg.PolicyQueuePartition)
	assert.True(t, cfg.KafkaEnsureTopics)
	assert.Equal(t, time.Duration(0), cfg.InformTimeout)
	assert.Equal(t, 5, cfg.DispatchCapacity)
	assert.Equal(t, MultipleInformReject, cfg.MultipleInformPolicy)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "shh", cfg.AWSSecretAccessKey)

	// untouched
	assert.Equal(t, "nuuacs-policy-events", cfg.PolicyQueueTopic)
	assert.Equal(t, "nuuday-acs-instances", cfg.KafkaConsumerGroup)
}

func TestApplyEnvBlankValuesKeepDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, ApplyEnv(cfg, mapLookup(map[string]string{
		"POD_NAME":              "   ",
		"ACS_DISPATCH_CAPACITY": "",
	})))
	assert.Equal(t, "dev_pod", cfg.InstanceID)
	assert.Equal(t, 100, cfg.DispatchCapacity)
}

func TestApplyEnvCollectsInvalidValues(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(cfg, mapLookup(map[string]string{
		"ACS_DISPATCH_CAPACITY":        "lots",
		"ACS_INFORM_TIMEOUT":           "soon",
		"KAFKA_POLICY_QUEUE_PARTITION": "99999999999",
		"ACS_METRICS_ENABLED":          "perhaps",
	}))
	require.Error(t, err)

	assert.Contains(t, err.Error(), "ACS_DISPATCH_CAPACITY")
	assert.Contains(t, err.Error(), "ACS_INFORM_TIMEOUT")
	assert.Contains(t, err.Error(), "KAFKA_POLICY_QUEUE_PARTITION")
	assert.Contains(t, err.Error(), "ACS_METRICS_ENABLED")

	assert.Equal(t, 100, cfg.DispatchCapacity)
	assert.Equal(t, 20*time.Second, cfg.InformTimeout)
	assert.Equal(t, PartitionUnset, cfg.PolicyQueuePartition)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("POD_NAME", "from-env")
	t.Setenv("ACS_PUBSUB_SYSTEM", "channel")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.InstanceID)
	assert.Equal(t, PubSubChannel, cfg.PubSubSystem)
}
