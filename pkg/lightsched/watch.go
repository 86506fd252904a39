package lightsched

import (
	"context"
	"time"
)

// DefaultPollInterval is used by Wait when no interval is given.
const DefaultPollInterval = time.Second

// Wait polls the job until it reaches a terminal state, ctx is done, or a
// refresh fails. fn, when not nil, is called from the caller's goroutine
// after the first poll and whenever the state or progress changes.
func (j *Job) Wait(ctx context.Context, interval time.Duration, fn func(JobInfo)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	tracker := NewJobStateTracker(j.info.State)
	trackCtx := j.cluster.loggerFor(ctx).WithContext(ctx)
	lastProgress := -1

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := j.RefreshInfo(ctx); err != nil {
			return err
		}

		changed := tracker.Observe(trackCtx, j.info.State)
		if changed || j.info.Progress != lastProgress {
			lastProgress = j.info.Progress
			if fn != nil {
				fn(j.info)
			}
		}

		if j.info.State.IsTerminal() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitTasks polls the given tasks until every one of them is finished or ctx
// is done. fn is called with the refreshed slice after each poll.
func (j *Job) WaitTasks(ctx context.Context, interval time.Duration, tasks []TaskInfo, fn func([]TaskInfo)) error {
	if len(tasks) == 0 {
		return nil
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	trackCtx := j.cluster.loggerFor(ctx).WithContext(ctx)
	trackers := make(map[string]*TaskStateTracker, len(tasks))
	for _, t := range tasks {
		trackers[t.TaskID] = NewTaskStateTracker(t.State)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := j.RefreshTaskInfo(ctx, tasks); err != nil {
			return err
		}

		done := true
		for _, t := range tasks {
			trackers[t.TaskID].Observe(trackCtx, t.State)
			if !t.IsFinished() {
				done = false
			}
		}
		if fn != nil {
			fn(tasks)
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
