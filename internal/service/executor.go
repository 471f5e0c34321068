package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/crawld/internal/core"
	"github.com/target/crawld/internal/domain/model"
)

// ExecutorOptions groups dependencies for Executor.
type ExecutorOptions struct {
	Repo     core.JobRepository // Required: job repository
	Pipeline core.CrawlPipeline // Required: document producer
	Billing  core.BillingGate   // Required: charge-per-document gate
	Logger   *slog.Logger       // Optional: structured logger
}

// Executor runs one acquired job end to end: it drives the crawl pipeline,
// streams progress into the job record, filters the produced documents, and
// settles the terminal transition through the billing gate.
type Executor struct {
	repo     core.JobRepository
	pipeline core.CrawlPipeline
	billing  core.BillingGate
	logger   *slog.Logger
}

// NewExecutor constructs a new Executor.
func NewExecutor(opts ExecutorOptions) (*Executor, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("CrawlPipeline is required")
	}
	if opts.Billing == nil {
		return nil, errors.New("BillingGate is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "executor")
	}

	return &Executor{
		repo:     opts.Repo,
		pipeline: opts.Pipeline,
		billing:  opts.Billing,
		logger:   logger,
	}, nil
}

// MustNewExecutor constructs a new Executor and panics on error.
func MustNewExecutor(opts ExecutorOptions) *Executor {
	exec, err := NewExecutor(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create Executor: %v", err))
	}
	return exec
}

// Execute runs an active job to its terminal state. The job must carry the
// lock token obtained at acquisition; all writes go through holder-only
// repository operations, so a reclaimed job silently loses its writes instead
// of corrupting the record. Pipeline errors and billing rejections become
// failed terminal states; Execute itself only errors on store-level problems.
func (e *Executor) Execute(ctx context.Context, job *model.Job) error {
	if job == nil {
		return errors.New("job is required")
	}
	if job.LockToken == nil || *job.LockToken == "" {
		return fmt.Errorf("job %s has no lock token", job.ID)
	}
	token := *job.LockToken

	req := core.CrawlRequest{
		Targets:     job.Payload.Targets(),
		Mode:        job.Payload.Mode,
		Options:     job.Payload.CrawlerOptions,
		PageOptions: []byte(job.Payload.PageOptions),
	}

	buf := NewProgressBuffer()
	onProgress := func(step string, totalSteps int, doc *model.Document) {
		if doc != nil {
			buf.Append(*doc)
		}
		progress := &model.JobProgress{
			CurrentStep:     step,
			TotalSteps:      totalSteps,
			CurrentDocument: doc,
			PartialDocs:     buf.Snapshot(),
		}
		held, err := e.repo.UpdateProgress(ctx, core.ProgressParams{
			ID:        job.ID,
			LockToken: token,
			Progress:  progress,
		})
		if err != nil && e.logger != nil {
			e.logger.WarnContext(ctx, "progress write failed", "job_id", job.ID, "error", err)
		}
		if err == nil && !held && e.logger != nil {
			e.logger.WarnContext(ctx, "lock no longer held, progress write dropped", "job_id", job.ID)
		}
	}

	docs, runErr := e.pipeline.Run(ctx, req, onProgress)
	if runErr != nil {
		return e.fail(ctx, job.ID, token, model.JobError{
			Kind:    model.FailureCrawl,
			Message: runErr.Error(),
		})
	}

	// An empty crawl is a success with an empty result set, not a failure,
	// and nothing is charged for it.
	if len(docs) == 0 {
		return e.complete(ctx, job.ID, token, []model.Document{})
	}

	filtered := filterDocuments(docs, job.Payload.CrawlerOptions.ReturnOnlyURLs)

	charge, err := e.billing.Charge(ctx, job.Payload.TeamID, len(filtered))
	if err != nil {
		return e.fail(ctx, job.ID, token, model.JobError{
			Kind:    model.FailureBilling,
			Message: fmt.Sprintf("billing charge failed: %v", err),
		})
	}
	// Billing rejection overrides crawl success.
	if !charge.Success {
		reason := charge.Reason
		if reason == "" {
			reason = "billing rejected"
		}
		return e.fail(ctx, job.ID, token, model.JobError{
			Kind:    model.FailureBilling,
			Message: reason,
		})
	}

	return e.complete(ctx, job.ID, token, filtered)
}

// filterDocuments shapes the final result set: URLs-only jobs keep every
// document stripped to its source URL; everything else drops documents whose
// content is empty or whitespace-only.
func filterDocuments(docs []model.Document, urlsOnly bool) []model.Document {
	out := make([]model.Document, 0, len(docs))
	for _, doc := range docs {
		switch {
		case urlsOnly:
			out = append(out, doc.URLOnly())
		case doc.HasContent():
			out = append(out, doc)
		}
	}
	return out
}

func (e *Executor) complete(ctx context.Context, id, token string, docs []model.Document) error {
	result, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("encode result for job %s: %w", id, err)
	}

	ok, err := e.repo.Complete(ctx, core.TerminalParams{
		ID:        id,
		LockToken: token,
		Result:    result,
	})
	if err != nil {
		return fmt.Errorf("complete job %s: %w", id, err)
	}
	if e.logger != nil {
		if ok {
			e.logger.InfoContext(ctx, "job completed", "job_id", id, "documents", len(docs))
		} else {
			e.logger.WarnContext(ctx, "completion dropped, lock no longer held", "job_id", id)
		}
	}
	return nil
}

func (e *Executor) fail(ctx context.Context, id, token string, jobErr model.JobError) error {
	ok, err := e.repo.Fail(ctx, core.TerminalParams{
		ID:        id,
		LockToken: token,
		Result:    jobErr.MarshalResult(),
	})
	if err != nil {
		return fmt.Errorf("fail job %s: %w", id, err)
	}
	if e.logger != nil {
		if ok {
			e.logger.InfoContext(ctx, "job failed",
				"job_id", id,
				"kind", jobErr.Kind,
				"error", jobErr.Message,
			)
		} else {
			e.logger.WarnContext(ctx, "failure dropped, lock no longer held", "job_id", id)
		}
	}
	return nil
}
