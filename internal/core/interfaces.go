package core

import (
	"context"
	"time"

	"github.com/target/crawld/internal/domain/model"
)

// This file contains repository and collaborator interface definitions (ports
// in hexagonal architecture). Service implementations should depend on these
// interfaces, not concrete implementations.

// TerminalParams groups parameters for terminal job transitions.
type TerminalParams struct {
	ID        string
	LockToken string
	Result    []byte
}

// RequeueParams groups parameters for re-submitting a reclaimed job.
type RequeueParams struct {
	ID      string
	Payload model.CrawlPayload
}

// DeleteOldCompletedParams groups parameters for completed-job cleanup.
type DeleteOldCompletedParams struct {
	MaxAge    time.Duration
	BatchSize int
}

// JobRepository defines the interface for the backing queue store.
//
// The store is the single source of truth for job state: lock acquisition is
// atomic, holder-only writes are enforced via the lock token, and
// ForceRelease is the single privileged exception reserved for recovery.
type JobRepository interface {
	// Enqueue inserts a new waiting job and returns it.
	Enqueue(ctx context.Context, payload model.CrawlPayload) (*model.Job, error)
	// GetByID retrieves a job by its ID.
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// AcquireNext atomically locks the oldest waiting job and moves it to
	// active. Returns model.ErrNoJobsAvailable if nothing is waiting.
	AcquireNext(ctx context.Context) (*model.Job, error)
	// AcquireByID attempts to lock one specific waiting job. Exactly one of
	// any number of concurrent attempts succeeds; losers get
	// model.ErrNoJobsAvailable.
	AcquireByID(ctx context.Context, id string) (*model.Job, error)
	// UpdateProgress overwrites the job's progress field. Only the lock
	// holder may call this; a stale token is a no-op returning false.
	UpdateProgress(ctx context.Context, params ProgressParams) (bool, error)
	// Complete transitions an active job to completed with the final result.
	// Holder-only; returns false if the job is not active under the token.
	Complete(ctx context.Context, params TerminalParams) (bool, error)
	// Fail transitions an active job to failed with an error descriptor.
	// Holder-only; returns false if the job is not active under the token.
	Fail(ctx context.Context, params TerminalParams) (bool, error)
	// ListActive returns all jobs currently in the active state.
	ListActive(ctx context.Context) ([]*model.Job, error)
	// Stats returns job counts by state.
	Stats(ctx context.Context) (*model.JobStats, error)
	// CountActive returns the number of active jobs.
	CountActive(ctx context.Context) (int, error)
	// CountWaiting returns the number of waiting jobs.
	CountWaiting(ctx context.Context) (int, error)
	// ForceRelease clears a job's lock regardless of holder and marks it
	// failed with the given result. Privileged: recovery only, and only safe
	// while dispatch is paused.
	ForceRelease(ctx context.Context, id string, result []byte) error
	// Remove deletes a job record outright.
	Remove(ctx context.Context, id string) error
	// Requeue inserts a fresh waiting job reusing the given external id.
	// The old record must have been removed first.
	Requeue(ctx context.Context, params RequeueParams) (*model.Job, error)
	// DeleteOldCompleted deletes one bounded batch of completed jobs whose
	// finished_at is strictly older than MaxAge. Returns rows deleted.
	DeleteOldCompleted(ctx context.Context, params DeleteOldCompletedParams) (int64, error)
	// WaitForNotification blocks until the store signals that new jobs may
	// be available, or the context is done.
	WaitForNotification(ctx context.Context) error
}

// ProgressParams groups parameters for a holder-only progress write.
type ProgressParams struct {
	ID        string
	LockToken string
	Progress  *model.JobProgress
}

// QueueStateRepository coordinates cross-process queue state: the dispatch
// pause flag and the one-shot guard for deferred health alerts.
type QueueStateRepository interface {
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	IsPaused(ctx context.Context) (bool, error)
	// ArmNotifyGuard sets the one-shot deferred-alert guard. Returns false if
	// a check is already armed (the guard was not acquired).
	ArmNotifyGuard(ctx context.Context, ttl time.Duration) (bool, error)
}

// CrawlRequest is the normalized input handed to the crawl pipeline.
type CrawlRequest struct {
	Targets     []string
	Mode        string
	Options     model.CrawlerOptions
	PageOptions []byte
}

// ProgressFunc receives pipeline progress events. doc is nil for events that
// did not produce a new document.
type ProgressFunc func(step string, totalSteps int, doc *model.Document)

// CrawlPipeline is the black-box producer of documents. Implementations fetch
// and extract pages; the orchestrator only sequences them.
type CrawlPipeline interface {
	Run(ctx context.Context, req CrawlRequest, onProgress ProgressFunc) ([]model.Document, error)
}

// ChargeResult is the outcome of a billing charge attempt. A non-success
// result flips an otherwise-successful job into failed.
type ChargeResult struct {
	Success bool
	Reason  string
}

// BillingGate converts produced documents into a billing charge. Invoked
// exactly once per job, after filtering and before the terminal transition;
// never retried.
type BillingGate interface {
	Charge(ctx context.Context, teamID string, documentCount int) (ChargeResult, error)
}
