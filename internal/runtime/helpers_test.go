package runtime

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/require"

	configpkg "github.com/jdalberg/acs/internal/runtime/config"
	loggingpkg "github.com/jdalberg/acs/internal/runtime/logging"
	transportpkg "github.com/jdalberg/acs/internal/runtime/transport"
)

const informEnvelope = `<?xml version="1.0" encoding="UTF-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"
  xmlns:soap-enc="http://schemas.xmlsoap.org/soap/encoding/"
  xmlns:xsd="http://www.w3.org/2001/XMLSchema"
  xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
  xmlns:cwmp="urn:dslforum-org:cwmp-1-0">
  <soap:Header>
    <cwmp:ID soap:mustUnderstand="1">1</cwmp:ID>
  </soap:Header>
  <soap:Body>
    <cwmp:Inform>
      <DeviceId>
        <Manufacturer>ACME</Manufacturer>
        <OUI>001122</OUI>
        <ProductClass>ROUTER</ProductClass>
        <SerialNumber>{{serial}}</SerialNumber>
      </DeviceId>
      <Event soap-enc:arrayType="cwmp:EventStruct[1]">
        <EventStruct>
          <EventCode>1 BOOT</EventCode>
          <CommandKey></CommandKey>
        </EventStruct>
      </Event>
      <MaxEnvelopes>1</MaxEnvelopes>
      <CurrentTime>2024-05-01T10:00:00Z</CurrentTime>
      <RetryCount>0</RetryCount>
      <ParameterList soap-enc:arrayType="cwmp:ParameterValueStruct[2]">
        <ParameterValueStruct>
          <Name>InternetGatewayDevice.DeviceInfo.SoftwareVersion</Name>
          <Value xsi:type="xsd:string">1.2.3</Value>
        </ParameterValueStruct>
        <ParameterValueStruct>
          <Name>InternetGatewayDevice.DeviceInfo.UpTime</Name>
          <Value xsi:type="xsd:unsignedInt">42</Value>
        </ParameterValueStruct>
      </ParameterList>
    </cwmp:Inform>
  </soap:Body>
</soap:Envelope>`

const transferCompleteEnvelope = `<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/" xmlns:cwmp="urn:dslforum-org:cwmp-1-0">
  <soap:Body><cwmp:TransferComplete><CommandKey>k</CommandKey></cwmp:TransferComplete></soap:Body>
</soap:Envelope>`

const validPolicy = `{"acs_instance_id":"pod-1","session_id":"ACME-001122-SN1-ROUTER","device_id":"ACME-001122-SN1-ROUTER","session_type":"Inform","session_state":"Init","policy_type":"GetParameterValues","parameter_names":["InternetGatewayDevice.DeviceInfo.UpTime"]}`

const wantSessionID = "ACME-001122-SN1-ROUTER"

func informFor(serial string) string {
	return strings.Replace(informEnvelope, "{{serial}}", serial, 1)
}

func newTestLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func testConfig() *configpkg.Config {
	cfg := configpkg.Default()
	cfg.InstanceID = "pod-1"
	cfg.PubSubSystem = configpkg.PubSubChannel
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.InformTimeout = 200 * time.Millisecond
	cfg.RetryMaxRetries = 2
	cfg.RetryInitialInterval = time.Millisecond
	cfg.RetryMaxInterval = 5 * time.Millisecond
	cfg.ShutdownTimeout = 2 * time.Second
	return cfg
}

func staticFactory(pub message.Publisher, sub message.Subscriber) transportpkg.Factory {
	return transportpkg.FactoryFunc(func(context.Context, *configpkg.Config, watermill.LoggerAdapter) (transportpkg.Transport, error) {
		return transportpkg.Transport{Publisher: pub, Subscriber: sub}, nil
	})
}

func newGoChannel() *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
}

func newTestService(t *testing.T, cfg *configpkg.Config, deps ServiceDependencies) *Service {
	t.Helper()
	svc, err := NewService(cfg, newTestLogger(), context.Background(), deps)
	require.NoError(t, err)
	return svc
}

func localListener(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

// runService starts svc.Run and returns a function that waits for its result.
func runService(ctx context.Context, svc *Service) func(t *testing.T) error {
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	return func(t *testing.T) error {
		t.Helper()
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("service did not stop")
			return nil
		}
	}
}
