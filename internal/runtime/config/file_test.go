package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "acs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
instance_id: pod-from-file
pubsub_system: nats
nats_url: nats://localhost:4222
inform_timeout: 5s
policy_queue_partition: 2
kafka_brokers:
  - a:9092
  - b:9092
`)

	cfg := Default()
	require.NoError(t, LoadFile(path, cfg))

	assert.Equal(t, "pod-from-file", cfg.InstanceID)
	assert.Equal(t, PubSubNATS, cfg.PubSubSystem)
	assert.Equal(t, 5*time.Second, cfg.InformTimeout)
	assert.Equal(t, int32(2), cfg.PolicyQueuePartition)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "nuuacs-inform-events", cfg.InformEventsTopic)
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "instance_idd: typo\n")
	err := LoadFile(path, Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instance_idd")
}

func TestLoadFileEmptyDocument(t *testing.T) {
	path := writeFile(t, "")
	cfg := Default()
	require.NoError(t, LoadFile(path, cfg))
	assert.Equal(t, "dev_pod", cfg.InstanceID)
}

func TestLoadFileMissing(t *testing.T) {
	err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoadEnvWinsOverFile(t *testing.T) {
	path := writeFile(t, "instance_id: from-file\ndispatch_capacity: 7\n")

	cfg, err := Load(path, mapLookup(map[string]string{"POD_NAME": "from-env"}))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.InstanceID)
	assert.Equal(t, 7, cfg.DispatchCapacity)

	cfg, err = Load("", mapLookup(nil))
	require.NoError(t, err)
	assert.Equal(t, "dev_pod", cfg.InstanceID)
}
