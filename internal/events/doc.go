// Package events provides the lifecycle notification types exchanged with
// the notification sink.
//
// This package defines the StatusEvent message and the Notifier interface
// that allow for loose coupling between the orchestrator and the transport
// actually delivering notifications. The orchestrator emits events without
// knowing which sink will carry them; delivery is best-effort and a failed
// publish never influences orchestration.
//
// The primary components are:
// - StatusEvent: one lifecycle notification per (request, data group)
// - Notifier: interface for sinks that can deliver events
package events
