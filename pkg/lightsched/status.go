package lightsched

import (
	"github.com/lightsched/lightsched-go/internal/model"
)

// JobInfo is the last observed status of a job. Timestamps are passed
// through exactly as the scheduler formats them.
type JobInfo struct {
	State      JobState `json:"job_state"`
	Progress   int      `json:"progress"`
	TotalTasks int      `json:"total_tasks"`
	SubmitTime string   `json:"submit_time,omitempty"`
	ExecTime   string   `json:"exec_time,omitempty"`
	FinishTime string   `json:"finish_time,omitempty"`
}

// TaskInfo is the last observed status of a task.
type TaskInfo struct {
	TaskID     string    `json:"task_id"`
	TaskName   string    `json:"task_name"`
	State      TaskState `json:"task_state"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message,omitempty"`
	ExecNode   string    `json:"exec_node,omitempty"`
	StartTime  string    `json:"start_time,omitempty"`
	FinishTime string    `json:"finish_time,omitempty"`
	ExitCode   int       `json:"exit_code"`
}

func (t TaskInfo) IsFinished() bool {
	return t.State.IsTerminal()
}

// update overwrites the fields the scheduler may change over time.
func (t *TaskInfo) update(from TaskInfo) {
	if from.TaskName != "" {
		t.TaskName = from.TaskName
	}
	t.State = from.State
	t.Progress = from.Progress
	t.Message = from.Message
	t.ExecNode = from.ExecNode
	t.StartTime = from.StartTime
	t.FinishTime = from.FinishTime
	t.ExitCode = from.ExitCode
}

type PlatformInfo struct {
	Kind    string `json:"kind,omitempty"`
	Name    string `json:"name,omitempty"`
	Family  string `json:"family,omitempty"`
	Version string `json:"version,omitempty"`
}

// NodeInfo describes a worker node. Resources is the advertised capacity.
type NodeInfo struct {
	Name      string            `json:"name"`
	Address   string            `json:"address"`
	Platform  PlatformInfo      `json:"platform"`
	State     NodeState         `json:"state"`
	Online    string            `json:"online,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	Resources ResourceClaim     `json:"resources"`
}

// TaskSummary counts tasks per state.
type TaskSummary struct {
	Total    int               `json:"total"`
	Finished int               `json:"finished"`
	ByState  map[TaskState]int `json:"by_state"`
}

func Summarize(tasks []TaskInfo) TaskSummary {
	summary := TaskSummary{
		Total:   len(tasks),
		ByState: make(map[TaskState]int),
	}
	for _, t := range tasks {
		summary.ByState[t.State]++
		if t.IsFinished() {
			summary.Finished++
		}
	}
	return summary
}

func jobStateFromWire(v model.StateValue) JobState {
	if v.IsOrdinal {
		return JobStateFromOrdinal(v.Ordinal)
	}
	return ParseJobState(v.Name)
}

func taskStateFromWire(v model.StateValue) TaskState {
	if v.IsOrdinal {
		return TaskStateFromOrdinal(v.Ordinal)
	}
	return ParseTaskState(v.Name)
}

func nodeStateFromWire(v model.StateValue) NodeState {
	if v.IsOrdinal {
		return NodeStateFromOrdinal(v.Ordinal)
	}
	return ParseNodeState(v.Name)
}

func jobInfoFromWire(job *model.Job) JobInfo {
	info := JobInfo{
		State:      jobStateFromWire(job.State),
		Progress:   job.Progress.Int(),
		TotalTasks: job.TotalTasks.Int(),
		SubmitTime: job.SubmitTime.String(),
		ExecTime:   job.ExecTime.String(),
		FinishTime: job.FinishTime.String(),
	}
	if info.TotalTasks == 0 {
		for _, g := range job.Groups {
			info.TotalTasks += len(g.Tasks)
		}
	}
	return info
}

func taskInfoFromWire(task *model.Task) TaskInfo {
	return TaskInfo{
		TaskID:     task.Id,
		TaskName:   task.Name,
		State:      taskStateFromWire(task.State),
		Progress:   task.Progress.Int(),
		Message:    task.Message,
		ExecNode:   task.ExecNode,
		StartTime:  task.StartTime.String(),
		FinishTime: task.FinishTime.String(),
		ExitCode:   task.ExitCode.Int(),
	}
}

func nodeInfoFromWire(node *model.Node) NodeInfo {
	return NodeInfo{
		Name:    node.Name,
		Address: node.Address,
		Platform: PlatformInfo{
			Kind:    node.Platform.Kind,
			Name:    node.Platform.Name,
			Family:  node.Platform.Family,
			Version: node.Platform.Version,
		},
		State:     nodeStateFromWire(node.State),
		Online:    node.Online.String(),
		Labels:    copyLabels(node.Labels),
		Resources: resourceClaimFromWire(node.Resources),
	}
}
