// Package acs is the Inform bridge of a TR-069 auto-configuration server. It
// accepts CWMP envelopes posted by CPE devices, turns every Inform into a
// SessionEvent and publishes it to a message broker keyed by session id.
// In the other direction it consumes policy messages from the control plane
// and hands them to a PolicyDeliverer.
//
// Service owns the whole pipeline. NewService builds the broker clients for
// the transport named in Config and Run supervises three tasks: the HTTP
// server, the policy consumer and the event producer. The first task to stop
// ends Run with a *TaskExit; cancelling the context is a clean shutdown.
//
// # Transports
//
// The broker is picked with Config.PubSubSystem:
//   - kafka: watermill-kafka publisher keyed by session_id, consumer group or
//     a pinned partition reader
//   - channel: in-memory Go channels for tests and local runs
//   - nats: NATS core with queue groups
//   - rabbitmq: AMQP durable queues
//   - aws: SNS/SQS with LocalStack support
//   - http: events POSTed to the controller endpoint
//
// # Delivery
//
// Publishes are retried with exponential backoff. Every finished publish is
// reported to the DeliveryOutcomeHandler chain; with a dead-letter topic set,
// failed events are republished there with error, original_topic and
// attempts metadata. Undecodable policy messages go to the poison topic when
// one is configured.
//
// Extension points live on ServiceDependencies: a custom TransportFactory,
// extra outcome handlers, a PolicyDeliverer, router middleware and a
// Prometheus registry.
package acs
