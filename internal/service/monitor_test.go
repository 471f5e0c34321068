package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/crawld/internal/domain/model"
	"github.com/target/crawld/internal/observability/notify"
)

type recordingSink struct {
	mu       sync.Mutex
	payloads []notify.QueueAlertPayload
}

func (s *recordingSink) SendQueueAlert(_ context.Context, payload notify.QueueAlertPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func enqueueWaiting(t *testing.T, repo *fakeJobRepo, n int) {
	t.Helper()
	for range n {
		_, err := repo.Enqueue(context.Background(), model.CrawlPayload{
			URL: "https://example.com", Mode: model.ModeCrawl, TeamID: "team-1",
		})
		require.NoError(t, err)
	}
}

func TestMonitorCounts(t *testing.T) {
	ctx := context.Background()
	repo := newFakeJobRepo()
	enqueueWaiting(t, repo, 2)
	acquireTestJob(t, repo, model.CrawlPayload{URL: "https://a.com", Mode: model.ModeCrawl, TeamID: "t"})

	svc := MustNewMonitorService(MonitorServiceOptions{Repo: repo, Queue: &fakeQueueState{}})
	defer svc.Close()

	waiting, err := svc.WaitingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, waiting)

	active, err := svc.ActiveCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, active)
}

func TestCheckQueues(t *testing.T) {
	ctx := context.Background()

	t.Run("below threshold does not alert", func(t *testing.T) {
		repo := newFakeJobRepo()
		sink := &recordingSink{}
		svc := MustNewMonitorService(MonitorServiceOptions{
			Repo: repo, Queue: &fakeQueueState{}, Sink: sink, Threshold: 2,
		})
		defer svc.Close()

		report, err := svc.CheckQueues(ctx)
		require.NoError(t, err)
		assert.False(t, report.Alerted)
		assert.Zero(t, sink.count())
	})

	t.Run("at threshold alerts", func(t *testing.T) {
		repo := newFakeJobRepo()
		enqueueWaiting(t, repo, 2)
		sink := &recordingSink{}
		svc := MustNewMonitorService(MonitorServiceOptions{
			Repo: repo, Queue: &fakeQueueState{}, Sink: sink, Threshold: 2,
		})
		defer svc.Close()

		report, err := svc.CheckQueues(ctx)
		require.NoError(t, err)
		assert.True(t, report.Alerted)
		assert.Equal(t, 2, report.Waiting)
		require.Equal(t, 1, sink.count())
		assert.Equal(t, 2, sink.payloads[0].WaitingCount)
	})
}

func TestArmDeferredCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("not armed when queue is below threshold", func(t *testing.T) {
		svc := MustNewMonitorService(MonitorServiceOptions{
			Repo: newFakeJobRepo(), Queue: &fakeQueueState{}, Sink: &recordingSink{},
		})
		defer svc.Close()

		armed, err := svc.ArmDeferredCheck(ctx)
		require.NoError(t, err)
		assert.False(t, armed)
	})

	t.Run("guard makes the check one-shot", func(t *testing.T) {
		repo := newFakeJobRepo()
		enqueueWaiting(t, repo, 1)
		svc := MustNewMonitorService(MonitorServiceOptions{
			Repo: repo, Queue: &fakeQueueState{}, Sink: &recordingSink{}, Delay: time.Hour,
		})
		defer svc.Close()

		armed, err := svc.ArmDeferredCheck(ctx)
		require.NoError(t, err)
		assert.True(t, armed)

		again, err := svc.ArmDeferredCheck(ctx)
		require.NoError(t, err)
		assert.False(t, again, "second arm must be rejected by the guard")
	})

	t.Run("alerts when the backlog persists past the delay", func(t *testing.T) {
		repo := newFakeJobRepo()
		enqueueWaiting(t, repo, 3)
		sink := &recordingSink{}
		svc := MustNewMonitorService(MonitorServiceOptions{
			Repo: repo, Queue: &fakeQueueState{}, Sink: sink, Delay: 10 * time.Millisecond,
		})
		defer svc.Close()

		armed, err := svc.ArmDeferredCheck(ctx)
		require.NoError(t, err)
		require.True(t, armed)

		assert.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, 3, sink.payloads[0].WaitingCount)
	})

	t.Run("does not alert when the queue drains before the re-check", func(t *testing.T) {
		repo := newFakeJobRepo()
		enqueueWaiting(t, repo, 1)
		sink := &recordingSink{}
		svc := MustNewMonitorService(MonitorServiceOptions{
			Repo: repo, Queue: &fakeQueueState{}, Sink: sink, Delay: 30 * time.Millisecond,
		})

		armed, err := svc.ArmDeferredCheck(ctx)
		require.NoError(t, err)
		require.True(t, armed)

		// Drain the queue before the timer fires.
		job, err := repo.AcquireNext(ctx)
		require.NoError(t, err)
		_, err = repo.Complete(ctx, terminalParamsFor(job))
		require.NoError(t, err)

		svc.Close()
		assert.Zero(t, sink.count())
	})
}
