package lightsched

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestJobStateTrackerFollowsLifecycle(t *testing.T) {
	require := require.New(t)

	logs := &bytes.Buffer{}
	ctx := zerolog.New(logs).WithContext(context.Background())

	tracker := NewJobStateTracker(JobQueued)
	require.False(tracker.Observe(ctx, JobQueued))
	require.True(tracker.Observe(ctx, JobExecuting))
	require.True(tracker.Observe(ctx, JobHalted))
	require.True(tracker.Observe(ctx, JobExecuting))
	require.True(tracker.Observe(ctx, JobCompleted))
	require.Equal(JobCompleted, tracker.Current())

	require.Contains(logs.String(), "State changed")
	require.NotContains(logs.String(), "Unexpected state transition")
}

func TestJobStateTrackerAcceptsUnexpectedTransitions(t *testing.T) {
	require := require.New(t)

	logs := &bytes.Buffer{}
	ctx := zerolog.New(logs).WithContext(context.Background())

	tracker := NewJobStateTracker(JobCompleted)
	require.True(tracker.Observe(ctx, JobExecuting))
	require.Equal(JobExecuting, tracker.Current())
	require.Contains(logs.String(), "Unexpected state transition")
}

func TestTaskStateTrackerOnlyMovesForward(t *testing.T) {
	require := require.New(t)

	logs := &bytes.Buffer{}
	ctx := zerolog.New(logs).WithContext(context.Background())

	tracker := NewTaskStateTracker(TaskQueued)
	require.True(tracker.Observe(ctx, TaskDispatching))
	require.True(tracker.Observe(ctx, TaskExecuting))
	require.True(tracker.Observe(ctx, TaskAborted))
	require.NotContains(logs.String(), "Unexpected state transition")

	require.True(tracker.Observe(ctx, TaskScheduled))
	require.Equal(TaskScheduled, tracker.Current())
	require.Contains(logs.String(), "Unexpected state transition")
}
