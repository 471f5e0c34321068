package data

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/crawld/internal/core"
	"github.com/target/crawld/internal/domain/model"
	"github.com/target/crawld/internal/testutil"
)

func testPayload(url string) model.CrawlPayload {
	return model.CrawlPayload{
		URL:    url,
		Mode:   model.ModeCrawl,
		TeamID: "team-1",
	}
}

func TestJobRepo_EnqueueAndGet(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		job, err := repo.Enqueue(ctx, testPayload("https://example.com"))
		require.NoError(t, err)
		require.NotEmpty(t, job.ID)
		assert.Equal(t, model.JobStateWaiting, job.State)
		assert.Nil(t, job.LockToken)
		assert.Nil(t, job.Progress)
		assert.Nil(t, job.Result)

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, job.ID, got.ID)
		assert.Equal(t, "https://example.com", got.Payload.URL)
		assert.Equal(t, "team-1", got.Payload.TeamID)
	})
}

func TestJobRepo_EnqueueRejectsInvalidPayload(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		_, err := repo.Enqueue(context.Background(), model.CrawlPayload{Mode: model.ModeCrawl, TeamID: "t"})
		require.ErrorContains(t, err, "url is required")

		_, err = repo.Enqueue(context.Background(), model.CrawlPayload{URL: "https://example.com"})
		require.ErrorContains(t, err, "team id is required")
	})
}

func TestJobRepo_GetByIDNotFound(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		_, err := repo.GetByID(context.Background(), "missing")
		require.ErrorIs(t, err, ErrJobNotFound)
	})
}

func TestJobRepo_AcquireNextOrdersByAge(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		tp := NewFixedTimeProvider(testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{TimeProvider: tp})
		ctx := context.Background()

		first, err := repo.Enqueue(ctx, testPayload("https://first.example.com"))
		require.NoError(t, err)
		tp.AddTime(time.Second)
		_, err = repo.Enqueue(ctx, testPayload("https://second.example.com"))
		require.NoError(t, err)

		acquired, err := repo.AcquireNext(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID, acquired.ID)
		assert.Equal(t, model.JobStateActive, acquired.State)
		require.NotNil(t, acquired.LockToken)
		assert.NotEmpty(t, *acquired.LockToken)
	})
}

func TestJobRepo_AcquireNextEmptyQueue(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		_, err := repo.AcquireNext(context.Background())
		require.ErrorIs(t, err, model.ErrNoJobsAvailable)
	})
}

// Concurrent acquisition of the same waiting job must hand the lock to
// exactly one caller.
func TestJobRepo_AcquireByIDExactlyOneWins(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		job, err := repo.Enqueue(ctx, testPayload("https://example.com"))
		require.NoError(t, err)

		const attempts = 8
		var wg sync.WaitGroup
		wins := make(chan *model.Job, attempts)
		losses := make(chan error, attempts)

		for range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				acquired, acquireErr := repo.AcquireByID(ctx, job.ID)
				if acquireErr != nil {
					losses <- acquireErr
					return
				}
				wins <- acquired
			}()
		}
		wg.Wait()
		close(wins)
		close(losses)

		require.Len(t, wins, 1, "exactly one acquirer must win")
		for lossErr := range losses {
			require.ErrorIs(t, lossErr, model.ErrNoJobsAvailable)
		}

		winner := <-wins
		require.NotNil(t, winner.LockToken)
	})
}

func TestJobRepo_HolderOnlyWrites(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		job, err := repo.Enqueue(ctx, testPayload("https://example.com"))
		require.NoError(t, err)
		acquired, err := repo.AcquireNext(ctx)
		require.NoError(t, err)
		token := *acquired.LockToken

		t.Run("stale token progress write is dropped", func(t *testing.T) {
			ok, progressErr := repo.UpdateProgress(ctx, core.ProgressParams{
				ID:        job.ID,
				LockToken: "not-the-token",
				Progress:  &model.JobProgress{CurrentStep: "fetching", TotalSteps: 1},
			})
			require.NoError(t, progressErr)
			assert.False(t, ok)
		})

		t.Run("holder progress write lands", func(t *testing.T) {
			ok, progressErr := repo.UpdateProgress(ctx, core.ProgressParams{
				ID:        job.ID,
				LockToken: token,
				Progress:  &model.JobProgress{CurrentStep: "fetching", TotalSteps: 3},
			})
			require.NoError(t, progressErr)
			assert.True(t, ok)

			got, getErr := repo.GetByID(ctx, job.ID)
			require.NoError(t, getErr)
			require.NotNil(t, got.Progress)
			assert.Equal(t, 3, got.Progress.TotalSteps)
		})

		t.Run("stale token cannot complete", func(t *testing.T) {
			ok, completeErr := repo.Complete(ctx, core.TerminalParams{
				ID:        job.ID,
				LockToken: "not-the-token",
				Result:    []byte(`[]`),
			})
			require.NoError(t, completeErr)
			assert.False(t, ok)
		})

		t.Run("holder completes once", func(t *testing.T) {
			ok, completeErr := repo.Complete(ctx, core.TerminalParams{
				ID:        job.ID,
				LockToken: token,
				Result:    []byte(`[{"content":"ok"}]`),
			})
			require.NoError(t, completeErr)
			assert.True(t, ok)

			got, getErr := repo.GetByID(ctx, job.ID)
			require.NoError(t, getErr)
			assert.Equal(t, model.JobStateCompleted, got.State)
			assert.Nil(t, got.LockToken, "terminal jobs hold no lock")
			assert.Nil(t, got.Progress, "terminal transition clears progress")
			require.NotNil(t, got.FinishedAt)
			assert.JSONEq(t, `[{"content":"ok"}]`, string(got.Result))
		})

		t.Run("repeated terminal write is a no-op", func(t *testing.T) {
			ok, failErr := repo.Fail(ctx, core.TerminalParams{
				ID:        job.ID,
				LockToken: token,
				Result:    []byte(`{"kind":"crawl_error"}`),
			})
			require.NoError(t, failErr)
			assert.False(t, ok)

			got, getErr := repo.GetByID(ctx, job.ID)
			require.NoError(t, getErr)
			assert.Equal(t, model.JobStateCompleted, got.State, "first terminal result must stick")
		})
	})
}

func TestJobRepo_ForceReleaseAndRequeue(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		job, err := repo.Enqueue(ctx, testPayload("https://example.com"))
		require.NoError(t, err)
		acquired, err := repo.AcquireNext(ctx)
		require.NoError(t, err)
		staleToken := *acquired.LockToken

		result := model.JobError{Kind: model.FailureInterrupted, Message: "worker restart"}.MarshalResult()
		require.NoError(t, repo.ForceRelease(ctx, job.ID, result))

		released, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStateFailed, released.State)
		assert.Nil(t, released.LockToken)

		// The dead executor's token is now worthless.
		ok, err := repo.Complete(ctx, core.TerminalParams{ID: job.ID, LockToken: staleToken, Result: []byte(`[]`)})
		require.NoError(t, err)
		assert.False(t, ok)

		// Remove then requeue under the same external id.
		require.NoError(t, repo.Remove(ctx, job.ID))
		requeued, err := repo.Requeue(ctx, core.RequeueParams{ID: job.ID, Payload: job.Payload})
		require.NoError(t, err)
		assert.Equal(t, job.ID, requeued.ID, "clients keep polling the original id")
		assert.Equal(t, model.JobStateWaiting, requeued.State)
		assert.Nil(t, requeued.LockToken)
		assert.Nil(t, requeued.Result)

		// A double requeue hits the primary key instead of duplicating work.
		_, err = repo.Requeue(ctx, core.RequeueParams{ID: job.ID, Payload: job.Payload})
		require.Error(t, err)
	})
}

func TestJobRepo_ForceReleaseRequiresActive(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		job, err := repo.Enqueue(ctx, testPayload("https://example.com"))
		require.NoError(t, err)

		err = repo.ForceRelease(ctx, job.ID, []byte(`{}`))
		require.ErrorIs(t, err, ErrJobNotFound, "waiting jobs are not force-releasable")
	})
}

func TestJobRepo_StatsAndCounts(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		for range 3 {
			_, err := repo.Enqueue(ctx, testPayload("https://example.com"))
			require.NoError(t, err)
		}
		acquired, err := repo.AcquireNext(ctx)
		require.NoError(t, err)
		ok, err := repo.Complete(ctx, core.TerminalParams{ID: acquired.ID, LockToken: *acquired.LockToken, Result: []byte(`[]`)})
		require.NoError(t, err)
		require.True(t, ok)

		active, err := repo.AcquireNext(ctx)
		require.NoError(t, err)

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, &model.JobStats{Waiting: 1, Active: 1, Completed: 1}, stats)

		waiting, err := repo.CountWaiting(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, waiting)

		activeCount, err := repo.CountActive(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, activeCount)

		listed, err := repo.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, active.ID, listed[0].ID)
	})
}

func TestJobRepo_DeleteOldCompletedRetention(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		tp := NewFixedTimeProvider(testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{TimeProvider: tp})
		ctx := context.Background()

		finishJob := func() string {
			job, err := repo.Enqueue(ctx, testPayload("https://example.com"))
			require.NoError(t, err)
			acquired, err := repo.AcquireByID(ctx, job.ID)
			require.NoError(t, err)
			ok, err := repo.Complete(ctx, core.TerminalParams{ID: job.ID, LockToken: *acquired.LockToken, Result: []byte(`[]`)})
			require.NoError(t, err)
			require.True(t, ok)
			return job.ID
		}

		oldJob := finishJob()
		tp.AddTime(23*time.Hour + 59*time.Minute)
		freshJob := finishJob()

		// Advance just past the retention window for the old job only.
		tp.AddTime(time.Minute + time.Second)

		deleted, err := repo.DeleteOldCompleted(ctx, core.DeleteOldCompletedParams{
			MaxAge:    24 * time.Hour,
			BatchSize: 100,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), deleted)

		_, err = repo.GetByID(ctx, oldJob)
		require.ErrorIs(t, err, ErrJobNotFound)

		kept, err := repo.GetByID(ctx, freshJob)
		require.NoError(t, err)
		assert.Equal(t, model.JobStateCompleted, kept.State, "jobs inside the window survive the sweep")
	})
}

func TestJobRepo_DeleteOldCompletedValidation(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		_, err := repo.DeleteOldCompleted(context.Background(), core.DeleteOldCompletedParams{MaxAge: time.Hour})
		require.ErrorContains(t, err, "batch size")

		_, err = repo.DeleteOldCompleted(context.Background(), core.DeleteOldCompletedParams{BatchSize: 10})
		require.ErrorContains(t, err, "max age")
	})
}

func TestJobRepo_WaitForNotification(t *testing.T) {
	testutil.WithTestDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		waitErr := make(chan error, 1)
		go func() { waitErr <- repo.WaitForNotification(ctx) }()

		// Give the listener a moment to attach before notifying.
		time.Sleep(200 * time.Millisecond)
		_, err := repo.Enqueue(ctx, testPayload("https://example.com"))
		require.NoError(t, err)

		select {
		case err := <-waitErr:
			require.NoError(t, err)
		case <-ctx.Done():
			t.Fatal("notification never arrived")
		}
	})
}
