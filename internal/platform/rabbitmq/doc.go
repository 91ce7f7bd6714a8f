// Package rabbitmq implements the notification sink over an AMQP topic
// exchange.
//
// Delivery is best-effort with a fixed number of attempts and a linearly
// increasing backoff between them; a failed publish is reported to the
// caller but must never abort orchestration.
package rabbitmq
