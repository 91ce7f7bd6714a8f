// Package orchestrator drives the lifecycle of remote photogrammetry jobs.
//
// One Orchestrator instance handles one processing request end to end: it
// deduplicates the request's data groups against jobs already present on the
// compute node, creates the missing ones, polls them to completion within a
// shared retry budget, hands completed outputs to the result processor and
// unwinds cleanly when the operator requests shutdown.
//
// There is no fan-out concurrency across jobs: all jobs of a request are
// polled round-robin within the same loop, and the inter-round sleep is the
// single suspension point racing the shutdown signal.
package orchestrator
