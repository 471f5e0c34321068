package jobrunner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/crawld/internal/mocks"
	"github.com/target/crawld/internal/service"
)

// Store failures other than an empty queue are fatal to the worker loop; the
// process supervisor owns restarts, not the loop itself.
func TestRunnerStoreErrorIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	queue := mocks.NewMockQueueStateRepository(ctrl)

	queue.EXPECT().IsPaused(gomock.Any()).Return(false, nil).AnyTimes()
	repo.EXPECT().AcquireNext(gomock.Any()).Return(nil, errors.New("connection refused"))

	exec := service.MustNewExecutor(service.ExecutorOptions{
		Repo:     repo,
		Pipeline: &countingPipeline{},
		Billing:  allowBilling{},
	})
	runner, err := NewRunner(RunnerOptions{
		Repo:     repo,
		Queue:    queue,
		Executor: exec,
		IdleWait: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	err = runner.Run(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "acquire next job")
	require.ErrorContains(t, err, "connection refused")
}

// The pause flag lives in Redis; if it cannot be read the loop must stop
// rather than dispatch jobs an operator believes are held.
func TestRunnerPauseCheckErrorIsFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockJobRepository(ctrl)
	queue := mocks.NewMockQueueStateRepository(ctrl)

	queue.EXPECT().IsPaused(gomock.Any()).Return(false, errors.New("redis down"))

	exec := service.MustNewExecutor(service.ExecutorOptions{
		Repo:     repo,
		Pipeline: &countingPipeline{},
		Billing:  allowBilling{},
	})
	runner, err := NewRunner(RunnerOptions{
		Repo:     repo,
		Queue:    queue,
		Executor: exec,
		IdleWait: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	err = runner.Run(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "check pause flag")
}
