// Package notify defines the payloads and sink contracts for operational
// alerts emitted by the queue monitor.
package notify

import (
	"context"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// QueueAlertPayload captures the canonical data emitted when the job queue
// backlog trips an alerting rule.
type QueueAlertPayload struct {
	WaitingCount int
	ActiveCount  int
	Threshold    int
	Severity     string
	Hostname     string
	OccurredAt   time.Time
}

// Sink describes a destination capable of consuming queue alerts.
type Sink interface {
	SendQueueAlert(ctx context.Context, payload QueueAlertPayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload QueueAlertPayload) error

// SendQueueAlert implements the Sink interface.
func (f SinkFunc) SendQueueAlert(ctx context.Context, payload QueueAlertPayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
