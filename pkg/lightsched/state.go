package lightsched

// JobState is the lifecycle state of a job as reported by the scheduler.
// The declaration order is part of the wire protocol: list endpoints send
// the ordinal instead of the name.
type JobState int32

const (
	JobQueued JobState = iota
	JobExecuting
	JobHalted
	JobCompleted
	JobFailed
	JobTerminated
)

var jobStateNames = [...]string{"Queued", "Executing", "Halted", "Completed", "Failed", "Terminated"}

// AllJobStates lists every job state in declaration order.
func AllJobStates() []JobState {
	return []JobState{JobQueued, JobExecuting, JobHalted, JobCompleted, JobFailed, JobTerminated}
}

func (s JobState) String() string {
	if s < 0 || int(s) >= len(jobStateNames) {
		return jobStateNames[JobTerminated]
	}
	return jobStateNames[s]
}

// IsTerminal reports whether no further transition can happen.
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobTerminated
}

// ParseJobState decodes the canonical name. Unknown names decode to JobTerminated.
func ParseJobState(name string) JobState {
	for i, n := range jobStateNames {
		if n == name {
			return JobState(i)
		}
	}
	return JobTerminated
}

// JobStateFromOrdinal decodes the positional encoding used by list endpoints.
func JobStateFromOrdinal(ordinal int) JobState {
	if ordinal < 0 || ordinal >= len(jobStateNames) {
		return JobTerminated
	}
	return JobState(ordinal)
}

// TaskState is the lifecycle state of a single task. Declaration order is
// part of the wire protocol.
type TaskState int32

const (
	TaskQueued TaskState = iota
	TaskScheduled
	TaskDispatching
	TaskExecuting
	TaskCompleted
	TaskFailed
	TaskAborted
	TaskTerminated
)

var taskStateNames = [...]string{"Queued", "Scheduled", "Dispatching", "Executing", "Completed", "Failed", "Aborted", "Terminated"}

// AllTaskStates lists every task state in declaration order.
func AllTaskStates() []TaskState {
	return []TaskState{TaskQueued, TaskScheduled, TaskDispatching, TaskExecuting, TaskCompleted, TaskFailed, TaskAborted, TaskTerminated}
}

func (s TaskState) String() string {
	if s < 0 || int(s) >= len(taskStateNames) {
		return taskStateNames[TaskQueued]
	}
	return taskStateNames[s]
}

func (s TaskState) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskAborted || s == TaskTerminated
}

// ParseTaskState decodes the canonical name. Unknown names decode to TaskQueued.
func ParseTaskState(name string) TaskState {
	for i, n := range taskStateNames {
		if n == name {
			return TaskState(i)
		}
	}
	return TaskQueued
}

func TaskStateFromOrdinal(ordinal int) TaskState {
	if ordinal < 0 || ordinal >= len(taskStateNames) {
		return TaskQueued
	}
	return TaskState(ordinal)
}

// NodeState is the availability of a worker node.
type NodeState int32

const (
	NodeOnline NodeState = iota
	NodeOffline
	NodeUnknown
)

var nodeStateNames = [...]string{"Online", "Offline", "Unknown"}

func AllNodeStates() []NodeState {
	return []NodeState{NodeOnline, NodeOffline, NodeUnknown}
}

func (s NodeState) String() string {
	if s < 0 || int(s) >= len(nodeStateNames) {
		return nodeStateNames[NodeUnknown]
	}
	return nodeStateNames[s]
}

// ParseNodeState decodes the canonical name. Unknown names decode to NodeUnknown.
func ParseNodeState(name string) NodeState {
	for i, n := range nodeStateNames {
		if n == name {
			return NodeState(i)
		}
	}
	return NodeUnknown
}

func NodeStateFromOrdinal(ordinal int) NodeState {
	if ordinal < 0 || ordinal >= len(nodeStateNames) {
		return NodeUnknown
	}
	return NodeState(ordinal)
}

func (s JobState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *JobState) UnmarshalText(text []byte) error {
	*s = ParseJobState(string(text))
	return nil
}

func (s TaskState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TaskState) UnmarshalText(text []byte) error {
	*s = ParseTaskState(string(text))
	return nil
}

func (s NodeState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *NodeState) UnmarshalText(text []byte) error {
	*s = ParseNodeState(string(text))
	return nil
}
