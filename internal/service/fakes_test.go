package service

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/target/crawld/internal/core"
	"github.com/target/crawld/internal/domain/model"
)

// fakeJobRepo is an in-memory core.JobRepository for unit tests. It enforces
// the same holder-only write rules as the real store.
type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.Job

	enqueueErr      error
	listActiveErr   error
	forceReleaseErr error
	removeErr       map[string]error
	requeueErr      map[string]error

	progressWrites   map[string][]model.JobProgress
	deleteOldReturns []int64
	deleteOldCalls   int
	deleteOldParams  []core.DeleteOldCompletedParams
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		jobs:           make(map[string]*model.Job),
		removeErr:      make(map[string]error),
		requeueErr:     make(map[string]error),
		progressWrites: make(map[string][]model.JobProgress),
	}
}

func (f *fakeJobRepo) Enqueue(_ context.Context, payload model.CrawlPayload) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
	job := &model.Job{
		ID:        uuid.NewString(),
		Payload:   payload,
		State:     model.JobStateWaiting,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.jobs[job.ID] = job
	return cloneJob(job), nil
}

func (f *fakeJobRepo) GetByID(_ context.Context, id string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, model.ErrNoJobsAvailable
	}
	return cloneJob(job), nil
}

func (f *fakeJobRepo) AcquireNext(_ context.Context) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var waiting []*model.Job
	for _, job := range f.jobs {
		if job.State == model.JobStateWaiting {
			waiting = append(waiting, job)
		}
	}
	if len(waiting) == 0 {
		return nil, model.ErrNoJobsAvailable
	}
	sort.Slice(waiting, func(i, j int) bool { return waiting[i].CreatedAt.Before(waiting[j].CreatedAt) })
	return f.lockLocked(waiting[0]), nil
}

func (f *fakeJobRepo) AcquireByID(_ context.Context, id string) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.State != model.JobStateWaiting {
		return nil, model.ErrNoJobsAvailable
	}
	return f.lockLocked(job), nil
}

func (f *fakeJobRepo) lockLocked(job *model.Job) *model.Job {
	token := uuid.NewString()
	job.State = model.JobStateActive
	job.LockToken = &token
	job.UpdatedAt = time.Now()
	return cloneJob(job)
}

func (f *fakeJobRepo) UpdateProgress(_ context.Context, params core.ProgressParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[params.ID]
	if !ok || !held(job, params.LockToken) {
		return false, nil
	}
	job.Progress = params.Progress
	job.UpdatedAt = time.Now()
	f.progressWrites[params.ID] = append(f.progressWrites[params.ID], *params.Progress)
	return true, nil
}

func (f *fakeJobRepo) Complete(_ context.Context, params core.TerminalParams) (bool, error) {
	return f.finish(params, model.JobStateCompleted)
}

func (f *fakeJobRepo) Fail(_ context.Context, params core.TerminalParams) (bool, error) {
	return f.finish(params, model.JobStateFailed)
}

func (f *fakeJobRepo) finish(params core.TerminalParams, state model.JobState) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[params.ID]
	if !ok || !held(job, params.LockToken) {
		return false, nil
	}
	now := time.Now()
	job.State = state
	job.Result = json.RawMessage(params.Result)
	job.Progress = nil
	job.LockToken = nil
	job.FinishedAt = &now
	job.UpdatedAt = now
	return true, nil
}

func (f *fakeJobRepo) ListActive(_ context.Context) ([]*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listActiveErr != nil {
		return nil, f.listActiveErr
	}
	var active []*model.Job
	for _, job := range f.jobs {
		if job.State == model.JobStateActive {
			active = append(active, cloneJob(job))
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
	return active, nil
}

func (f *fakeJobRepo) Stats(_ context.Context) (*model.JobStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &model.JobStats{}
	for _, job := range f.jobs {
		switch job.State {
		case model.JobStateWaiting:
			stats.Waiting++
		case model.JobStateActive:
			stats.Active++
		case model.JobStateCompleted:
			stats.Completed++
		case model.JobStateFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (f *fakeJobRepo) CountActive(ctx context.Context) (int, error) {
	stats, err := f.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.Active, nil
}

func (f *fakeJobRepo) CountWaiting(ctx context.Context) (int, error) {
	stats, err := f.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.Waiting, nil
}

func (f *fakeJobRepo) ForceRelease(_ context.Context, id string, result []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forceReleaseErr != nil {
		return f.forceReleaseErr
	}
	job, ok := f.jobs[id]
	if !ok || job.State != model.JobStateActive {
		return model.ErrNoJobsAvailable
	}
	now := time.Now()
	job.State = model.JobStateFailed
	job.Result = json.RawMessage(result)
	job.Progress = nil
	job.LockToken = nil
	job.FinishedAt = &now
	return nil
}

func (f *fakeJobRepo) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.removeErr[id]; err != nil {
		return err
	}
	if _, ok := f.jobs[id]; !ok {
		return model.ErrNoJobsAvailable
	}
	delete(f.jobs, id)
	return nil
}

func (f *fakeJobRepo) Requeue(_ context.Context, params core.RequeueParams) (*model.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.requeueErr[params.ID]; err != nil {
		return nil, err
	}
	job := &model.Job{
		ID:        params.ID,
		Payload:   params.Payload,
		State:     model.JobStateWaiting,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.jobs[job.ID] = job
	return cloneJob(job), nil
}

func (f *fakeJobRepo) DeleteOldCompleted(
	_ context.Context,
	params core.DeleteOldCompletedParams,
) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteOldParams = append(f.deleteOldParams, params)
	if f.deleteOldCalls < len(f.deleteOldReturns) {
		n := f.deleteOldReturns[f.deleteOldCalls]
		f.deleteOldCalls++
		return n, nil
	}
	f.deleteOldCalls++
	return 0, nil
}

func (f *fakeJobRepo) WaitForNotification(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeJobRepo) get(id string) *model.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneJob(f.jobs[id])
}

func terminalParamsFor(job *model.Job) core.TerminalParams {
	params := core.TerminalParams{ID: job.ID, Result: []byte(`[]`)}
	if job.LockToken != nil {
		params.LockToken = *job.LockToken
	}
	return params
}

func held(job *model.Job, token string) bool {
	return job.State == model.JobStateActive && job.LockToken != nil && *job.LockToken == token
}

func cloneJob(job *model.Job) *model.Job {
	if job == nil {
		return nil
	}
	out := *job
	if job.LockToken != nil {
		token := *job.LockToken
		out.LockToken = &token
	}
	return &out
}

// fakeQueueState is an in-memory core.QueueStateRepository.
type fakeQueueState struct {
	mu      sync.Mutex
	paused  bool
	guarded bool
}

func (f *fakeQueueState) Pause(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = true
	return nil
}

func (f *fakeQueueState) Resume(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = false
	return nil
}

func (f *fakeQueueState) IsPaused(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paused, nil
}

func (f *fakeQueueState) ArmNotifyGuard(context.Context, time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.guarded {
		return false, nil
	}
	f.guarded = true
	return true, nil
}

// stubPipeline replays a scripted document stream through the progress
// callback before returning.
type stubPipeline struct {
	docs []model.Document
	err  error

	gotReq core.CrawlRequest
}

func (p *stubPipeline) Run(
	_ context.Context,
	req core.CrawlRequest,
	onProgress core.ProgressFunc,
) ([]model.Document, error) {
	p.gotReq = req
	if p.err != nil {
		return nil, p.err
	}
	total := len(p.docs)
	for i := range p.docs {
		onProgress("fetching", total, &p.docs[i])
	}
	return p.docs, nil
}

// stubBilling records charges and returns a scripted outcome.
type stubBilling struct {
	result core.ChargeResult
	err    error

	charges []int
	teamIDs []string
}

func (b *stubBilling) Charge(
	_ context.Context,
	teamID string,
	documentCount int,
) (core.ChargeResult, error) {
	b.charges = append(b.charges, documentCount)
	b.teamIDs = append(b.teamIDs, teamID)
	if b.err != nil {
		return core.ChargeResult{}, b.err
	}
	return b.result, nil
}
