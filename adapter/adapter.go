// Package adapter defines the event-bus boundary for chain-run completion
// notifications.
//
// Adapters publish a ChainRunCompletedEvent once a ChainRun reaches a
// terminal state. The executor only publishes through an adapter; whoever
// constructs the adapter (the serve command) also closes it. This is an
// ambient integration point, not part of
// the core chain execution contract.
package adapter

import "context"

// ChainRunCompletedEvent is the payload published when a ChainRun finishes.
type ChainRunCompletedEvent struct {
	ChainRunID  string `json:"chain_run_id"`
	EventType   string `json:"event_type"` // always "chain_run_completed"
	Fingerprint string `json:"fingerprint"`
	ChainName   string `json:"chain_name"`
	Outcome     string `json:"outcome"` // completed, failed, cancelled
	Timestamp   string `json:"timestamp"`
	DurationMs  int64  `json:"duration_ms"`
	StepCount   int    `json:"step_count"`
}

// Adapter publishes chain-run completion events to a downstream system.
// Implementations must be safe for single-use per event.
type Adapter interface {
	// Publish sends a completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *ChainRunCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
