package lightsched

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"
)

type trackedState interface {
	comparable
	String() string
}

// stateTracker follows the lifecycle of one job or task across polls. Event
// names are the destination state names. A transition the lifecycle does
// not allow is still applied, with a warning, since the scheduler is the
// source of truth.
type stateTracker[S trackedState] struct {
	kind    string
	machine *fsm.FSM
	parse   func(string) S
}

func newStateTracker[S trackedState](kind string, initial S, events fsm.Events, parse func(string) S) *stateTracker[S] {
	return &stateTracker[S]{
		kind:  kind,
		parse: parse,
		machine: fsm.NewFSM(initial.String(), events, fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				log.Ctx(ctx).Debug().Str("kind", kind).Str("from", e.Src).Str("to", e.Dst).Msg("State changed")
			},
		}),
	}
}

func (t *stateTracker[S]) Current() S {
	return t.parse(t.machine.Current())
}

// Observe records a newly polled state and reports whether it differs from
// the previous one.
func (t *stateTracker[S]) Observe(ctx context.Context, s S) bool {
	if s == t.Current() {
		return false
	}

	name := s.String()
	if t.machine.Can(name) {
		if err := t.machine.Event(ctx, name); err == nil {
			return true
		}
	}

	log.Ctx(ctx).Warn().Str("kind", t.kind).Str("from", t.machine.Current()).Str("to", name).Msg("Unexpected state transition")
	t.machine.SetState(name)
	return true
}

// JobStateTracker follows a job through Queued, Executing and Halted to one
// of its terminal states.
type JobStateTracker struct {
	*stateTracker[JobState]
}

func NewJobStateTracker(initial JobState) *JobStateTracker {
	active := []string{JobQueued.String(), JobExecuting.String(), JobHalted.String()}
	events := fsm.Events{
		{Name: JobQueued.String(), Src: []string{JobHalted.String()}, Dst: JobQueued.String()},
		{Name: JobExecuting.String(), Src: []string{JobQueued.String(), JobHalted.String()}, Dst: JobExecuting.String()},
		{Name: JobHalted.String(), Src: []string{JobQueued.String(), JobExecuting.String()}, Dst: JobHalted.String()},
	}
	for _, s := range []JobState{JobCompleted, JobFailed, JobTerminated} {
		events = append(events, fsm.EventDesc{Name: s.String(), Src: active, Dst: s.String()})
	}

	return &JobStateTracker{newStateTracker("job", initial, events, ParseJobState)}
}

// TaskStateTracker follows a task. Tasks only move forward through their
// states.
type TaskStateTracker struct {
	*stateTracker[TaskState]
}

func NewTaskStateTracker(initial TaskState) *TaskStateTracker {
	events := fsm.Events{}
	all := AllTaskStates()
	for i, dst := range all {
		var src []string
		for _, s := range all[:i] {
			if !s.IsTerminal() {
				src = append(src, s.String())
			}
		}
		if len(src) > 0 {
			events = append(events, fsm.EventDesc{Name: dst.String(), Src: src, Dst: dst.String()})
		}
	}

	return &TaskStateTracker{newStateTracker("task", initial, events, ParseTaskState)}
}
