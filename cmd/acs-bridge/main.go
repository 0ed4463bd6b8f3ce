// acs-bridge accepts CWMP Informs from CPE devices over HTTP and publishes
// them as session events to the configured broker, while consuming policy
// messages for the devices it serves.
//
// Configuration comes from defaults, an optional YAML file (--config), the
// environment and finally the flags below, in that order.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/jdalberg/acs"
)

func main() {
	if err := run(os.Args[1:], os.LookupEnv, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "acs-bridge: %v\n", err)
		os.Exit(1)
	}
}

type flagValues struct {
	configPath string
	listen     string
	pubsub     string
	instanceID string
	logLevel   string
	metrics    bool
}

func parseFlags(args []string) (*pflag.FlagSet, flagValues, error) {
	var v flagValues
	flagSet := pflag.NewFlagSet("acs-bridge", pflag.ContinueOnError)
	flagSet.StringVar(&v.configPath, "config", "", "path to a YAML configuration file")
	flagSet.StringVar(&v.listen, "listen", "", "HTTP listen address for devices (overrides ACS_LISTEN_ADDRESS)")
	flagSet.StringVar(&v.pubsub, "pubsub", "", "broker transport: kafka, channel, nats, rabbitmq, aws, http")
	flagSet.StringVar(&v.instanceID, "instance-id", "", "bridge instance identity (overrides POD_NAME)")
	flagSet.StringVar(&v.logLevel, "log-level", "", "debug, info, warn or error")
	flagSet.BoolVar(&v.metrics, "metrics", false, "serve Prometheus metrics on the metrics port")

	if err := flagSet.Parse(args); err != nil {
		return nil, v, err
	}
	return flagSet, v, nil
}

// applyFlags copies the flags that were set on the command line onto cfg.
func applyFlags(flagSet *pflag.FlagSet, v flagValues, cfg *acs.Config) {
	if flagSet.Changed("listen") {
		cfg.ListenAddress = v.listen
	}
	if flagSet.Changed("pubsub") {
		cfg.PubSubSystem = v.pubsub
	}
	if flagSet.Changed("instance-id") {
		cfg.InstanceID = v.instanceID
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = v.logLevel
	}
	if flagSet.Changed("metrics") {
		cfg.MetricsEnabled = v.metrics
	}
}

func run(args []string, lookup func(string) (string, bool), stdout io.Writer) error {
	flagSet, flags, err := parseFlags(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := acs.LoadConfig(flags.configPath, lookup)
	if err != nil {
		return err
	}
	applyFlags(flagSet, flags, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := acs.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := acs.NewSlogServiceLogger(acs.NewJSONLogger(stdout, level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := acs.NewService(cfg, logger, ctx, acs.ServiceDependencies{})
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}
