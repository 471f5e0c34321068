// Package model defines the core data types and structures used throughout the crawld job system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobState represents the lifecycle state of a crawl job.
type JobState string

const (
	// JobStateWaiting indicates a job is queued and waiting for an executor.
	JobStateWaiting JobState = "waiting"
	// JobStateActive indicates a job is locked by exactly one executor.
	JobStateActive JobState = "active"
	// JobStateCompleted indicates a job finished successfully.
	JobStateCompleted JobState = "completed"
	// JobStateFailed indicates a job reached a terminal failure.
	JobStateFailed JobState = "failed"
)

// Valid returns true if the JobState is valid.
func (s JobState) Valid() bool {
	return s == JobStateWaiting || s == JobStateActive || s == JobStateCompleted ||
		s == JobStateFailed
}

// Terminal returns true for states that permit no further transitions.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// ErrNoJobsAvailable is returned when no waiting jobs can be acquired.
var ErrNoJobsAvailable = errors.New("no jobs available")

// ModeCrawl treats the payload URL as a single seed for multi-page traversal.
// Any other mode splits a comma-separated URL field into independent
// single-page fetch targets.
const ModeCrawl = "crawl"

// CrawlerOptions tunes crawl traversal and result shaping.
type CrawlerOptions struct {
	ReturnOnlyURLs bool `json:"returnOnlyUrls,omitempty"`
	Limit          int  `json:"limit,omitempty"`
	MaxDepth       int  `json:"maxDepth,omitempty"`
}

// CrawlPayload is the immutable description of what a job crawls.
// PageOptions is passed through to the crawl pipeline untouched.
type CrawlPayload struct {
	URL            string          `json:"url"`
	Mode           string          `json:"mode"`
	CrawlerOptions CrawlerOptions  `json:"crawlerOptions,omitempty"`
	PageOptions    json.RawMessage `json:"pageOptions,omitempty"`
	TeamID         string          `json:"teamId"`
}

// Validate validates the CrawlPayload fields.
func (p *CrawlPayload) Validate() error {
	if strings.TrimSpace(p.URL) == "" {
		return errors.New("url is required")
	}
	if strings.TrimSpace(p.TeamID) == "" {
		return errors.New("team id is required")
	}
	if p.CrawlerOptions.Limit < 0 {
		return errors.New("crawler limit must be >= 0")
	}
	return nil
}

// Targets returns the normalized fetch targets for the payload. Crawl mode
// yields the single seed URL; every other mode splits the comma-separated
// URL field into independent single-page targets.
func (p *CrawlPayload) Targets() []string {
	if p.Mode == ModeCrawl {
		return []string{strings.TrimSpace(p.URL)}
	}
	parts := strings.Split(p.URL, ",")
	targets := make([]string, 0, len(parts))
	for _, part := range parts {
		if u := strings.TrimSpace(part); u != "" {
			targets = append(targets, u)
		}
	}
	return targets
}

// Job represents one crawl request with its lifecycle state, progress, and
// eventual result. A job holds a lock token if and only if it is active, and
// Result is written exactly once, on entering a terminal state.
type Job struct {
	ID         string          `json:"id"                    db:"id"`
	Payload    CrawlPayload    `json:"payload"               db:"payload"`
	State      JobState        `json:"state"                 db:"state"`
	LockToken  *string         `json:"-"                     db:"lock_token"`
	Progress   *JobProgress    `json:"progress,omitempty"    db:"progress"`
	Result     json.RawMessage `json:"result,omitempty"      db:"result"`
	FinishedAt *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
	CreatedAt  time.Time       `json:"created_at"            db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"            db:"updated_at"`
}

// JobProgress is the executor-owned progress snapshot, overwritten (not
// appended) on each update while the job is active.
type JobProgress struct {
	CurrentStep     string     `json:"currentStep"`
	TotalSteps      int        `json:"totalSteps"`
	CurrentDocument *Document  `json:"currentDocument,omitempty"`
	PartialDocs     []Document `json:"partialDocs"`
}

// FailureKind categorizes terminal failures so downstream consumers can tell
// "crawl failed" from "crawl succeeded, billing failed" from forced recovery.
type FailureKind string

const (
	// FailureCrawl indicates the crawl pipeline itself failed.
	FailureCrawl FailureKind = "crawl_error"
	// FailureBilling indicates the crawl succeeded but billing rejected the charge.
	FailureBilling FailureKind = "billing_rejected"
	// FailureInterrupted indicates the job was reclaimed after its executor died.
	FailureInterrupted FailureKind = "interrupted"
)

// JobError is the error descriptor written as the result of a failed job.
type JobError struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"error"`
}

// MarshalResult encodes a JobError for storage in the job's result column.
func (e JobError) MarshalResult() json.RawMessage {
	raw, err := json.Marshal(e)
	if err != nil {
		// JobError contains only strings; marshal cannot realistically fail.
		return json.RawMessage(fmt.Sprintf(`{"kind":%q,"error":"encode failure"}`, e.Kind))
	}
	return raw
}

// EnqueueRequest represents a request to submit a new crawl job.
type EnqueueRequest struct {
	URL            string          `json:"url"`
	Mode           string          `json:"mode"`
	CrawlerOptions CrawlerOptions  `json:"crawlerOptions,omitempty"`
	PageOptions    json.RawMessage `json:"pageOptions,omitempty"`
	TeamID         string          `json:"teamId"`
}

// Payload converts the request into the job's immutable payload.
func (r *EnqueueRequest) Payload() CrawlPayload {
	return CrawlPayload{
		URL:            r.URL,
		Mode:           r.Mode,
		CrawlerOptions: r.CrawlerOptions,
		PageOptions:    r.PageOptions,
		TeamID:         r.TeamID,
	}
}

// Validate validates the EnqueueRequest fields.
func (r *EnqueueRequest) Validate() error {
	p := r.Payload()
	return p.Validate()
}

// JobStats represents counts of jobs in each lifecycle state.
type JobStats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// JobStatusResponse is the client-facing status poll shape.
type JobStatusResponse struct {
	State    JobState        `json:"state"`
	Progress *JobProgress    `json:"progress,omitempty"`
	Result   json.RawMessage `json:"result,omitempty"`
}
