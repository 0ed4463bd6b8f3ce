package main

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdalberg/acs"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestApplyFlagsOnlyTouchesChangedFlags(t *testing.T) {
	flagSet, flags, err := parseFlags([]string{"--listen", "0.0.0.0:7547", "--metrics"})
	require.NoError(t, err)

	cfg := acs.DefaultConfig()
	cfg.PubSubSystem = "nats"
	applyFlags(flagSet, flags, cfg)

	assert.Equal(t, "0.0.0.0:7547", cfg.ListenAddress)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "nats", cfg.PubSubSystem)
	assert.Equal(t, "dev_pod", cfg.InstanceID)
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	assert.Error(t, run([]string{"--no-such-flag"}, env(nil), io.Discard))
}

func TestRunHelp(t *testing.T) {
	assert.NoError(t, run([]string{"--help"}, env(nil), io.Discard))
}

func TestRunReportsBadEnvironment(t *testing.T) {
	err := run(nil, env(map[string]string{"ACS_DISPATCH_CAPACITY": "lots"}), io.Discard)
	assert.ErrorContains(t, err, "ACS_DISPATCH_CAPACITY")
}

func TestRunReportsInvalidConfiguration(t *testing.T) {
	err := run([]string{"--pubsub", "nats"}, env(nil), io.Discard)
	assert.ErrorContains(t, err, "nats: URL is required")
}

func TestRunReportsBadLogLevel(t *testing.T) {
	err := run([]string{"--log-level", "loud"}, env(nil), io.Discard)
	assert.ErrorContains(t, err, "unknown log level")
}

func TestRunReportsMissingConfigFile(t *testing.T) {
	err := run([]string{"--config", "/nonexistent/acs.yaml"}, env(nil), io.Discard)
	assert.ErrorContains(t, err, "reading config file")
}
