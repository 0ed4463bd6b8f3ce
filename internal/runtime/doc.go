/*
Package runtime provides the supervised Inform pipeline of the ACS bridge.

# Architecture Overview

Devices post CWMP envelopes over HTTP. Each accepted Inform becomes a
SessionEvent that travels through a bounded dispatch queue to a producer,
which publishes it to the broker keyed by session id. In the other direction
a Watermill router consumes policy messages from the control plane and
forwards them through a second bounded queue to the supervisor.

	device --POST /acs--> ingress --dispatch queue--> producer --> inform topic
	policy topic --> router --intake queue--> supervisor --> PolicyDeliverer

# Package Structure

## Core Service (service.go)

The Service struct wires together:
  - The Envelope transformer bound to the bridge instance identity
  - Publisher and subscriber connections built by the transport factory
  - The policy consumer router and its middleware chain
  - Delivery outcome handlers (logging, dead-letter)
  - Metrics registry and the Watermill metrics builder

## Supervisor (supervisor.go)

Run starts three tasks, web_server, policy_consumer and event_producer, and
waits for the first of them to stop. Any task stopping is fatal: Run tears the
rest down and returns a *TaskExit naming the task. Cancelling the context is
a clean shutdown. Teardown order is HTTP server, dispatch queue, producer
drain (bounded by ShutdownTimeout), router, broker clients.

## Ingress (ingress.go)

POST /acs parses the envelope, checks it is an Inform, transforms it and
enqueues the event. Failures map to 400; a full queue past InformTimeout or a
stopped producer maps to 408. GET /hello is a liveness probe.

## Producer (producer.go, delivery.go)

Publishes with exponential backoff and reports every result to a
DeliveryOutcomeHandler. The dead-letter handler republishes failed events
with error, original_topic and attempts metadata.

## Consumer (consumer.go, policy.go, middleware.go)

Decodes PolicyMessage payloads. Undecodable payloads go to the poison topic
when one is configured.

## Metrics (metrics.go, dlq_metrics.go)

Prometheus collectors under the acs namespace, served on /metrics.

# Sub-packages

  - config/: Bridge configuration, env and YAML loading, validation
  - dispatch/: Bounded multi-producer single-consumer queue
  - errors/: Sentinel errors
  - ids/: ULID generation for message and correlation ids
  - jsoncodec/: JSON marshaling
  - logging/: Logger interface and Watermill adapters
  - metadata/: Message metadata keys and helpers
  - session/: SessionEvent, the envelope transformer, policy messages
  - transport/: Transport factory over the transport registry
*/
package runtime
