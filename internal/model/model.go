package model

// ClusterIdentity is returned by GET /cluster.
type ClusterIdentity struct {
	Id   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Created is returned by POST /jobs.
type Created struct {
	Id string `json:"id"`
}

type Cpu struct {
	Cores     FlexString `json:"cores"`
	Frequency FlexString `json:"frequency,omitempty"`
}

type Gpu struct {
	Cards  FlexString `json:"cards,omitempty"`
	Memory FlexString `json:"memory,omitempty"`
	Cuda   FlexInt    `json:"cuda,omitempty"`
}

// Resources is the nested resource schema. Absent members mean the
// resource is not being requested (or not advertised, for nodes).
type Resources struct {
	Cpu    *Cpu                  `json:"cpu,omitempty"`
	Memory FlexString            `json:"memory,omitempty"`
	Gpu    *Gpu                  `json:"gpu,omitempty"`
	Others map[string]FlexString `json:"others,omitempty"`
}

type TaskSpec struct {
	Name      string            `json:"name"`
	Command   string            `json:"command,omitempty"`
	Args      string            `json:"args,omitempty"`
	WorkDir   string            `json:"workdir,omitempty"`
	Envs      []string          `json:"envs,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	Resources *Resources        `json:"resources,omitempty"`
}

type TaskGroup struct {
	Name      string     `json:"name"`
	Envs      []string   `json:"envs,omitempty"`
	Command   string     `json:"command,omitempty"`
	WorkDir   string     `json:"workdir,omitempty"`
	Resources *Resources `json:"resources,omitempty"`
	Tasks     []TaskSpec `json:"tasks"`
}

// JobSubmission is the body of POST /jobs.
type JobSubmission struct {
	Id        string            `json:"id,omitempty"`
	Name      string            `json:"name"`
	Queue     string            `json:"queue"`
	Priority  int               `json:"priority"`
	MaxErrors int               `json:"max_errors"`
	Labels    map[string]string `json:"labels,omitempty"`
	Groups    []TaskGroup       `json:"groups"`
}

// Job is the job detail object returned by GET /jobs/{id} and, as an
// array, by GET /jobs.
type Job struct {
	JobSubmission
	State      StateValue `json:"state"`
	Progress   FlexInt    `json:"progress"`
	TotalTasks FlexInt    `json:"total_tasks,omitempty"`
	SubmitTime FlexString `json:"submit_time,omitempty"`
	ExecTime   FlexString `json:"exec_time,omitempty"`
	FinishTime FlexString `json:"finish_time,omitempty"`
}

// Task is the task object returned by the /tasks endpoints.
type Task struct {
	Id    string `json:"id"`
	JobId string `json:"job_id,omitempty"`
	TaskSpec
	State      StateValue `json:"state"`
	Progress   FlexInt    `json:"progress"`
	Message    string     `json:"message,omitempty"`
	ExecNode   string     `json:"exec_node,omitempty"`
	StartTime  FlexString `json:"start_time,omitempty"`
	FinishTime FlexString `json:"finish_time,omitempty"`
	ExitCode   FlexInt    `json:"exit_code"`
}

type Platform struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Family  string `json:"family"`
	Version string `json:"version"`
}

// Node is the node object returned by the /nodes endpoints.
type Node struct {
	Name      string            `json:"name"`
	Address   string            `json:"address"`
	Platform  Platform          `json:"platform"`
	State     StateValue        `json:"state"`
	Online    FlexString        `json:"online,omitempty"`
	Labels    map[string]string `json:"labels,omitempty"`
	Resources *Resources        `json:"resources,omitempty"`
}
