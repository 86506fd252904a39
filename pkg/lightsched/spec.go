package lightsched

import (
	"strings"

	"github.com/lightsched/lightsched-go/internal/model"
)

const (
	DefaultPriority = 1000
	DefaultQueue    = "default"

	// name of the single task group every submitted job carries
	mainGroupName = "main"
)

// TaskSpec describes one task of a job before submission.
type TaskSpec struct {
	TaskName     string            `json:"task_name"`
	Command      string            `json:"command,omitempty"`
	CommandArgs  string            `json:"command_args,omitempty"`
	Environments string            `json:"environments,omitempty"` // "K1=V1;K2=V2"
	WorkDir      string            `json:"work_dir,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
	Resources    ResourceClaim     `json:"resources,omitempty"`
}

func NewTaskSpec(name, command, commandArgs string) TaskSpec {
	return TaskSpec{
		TaskName:    name,
		Command:     command,
		CommandArgs: commandArgs,
	}
}

func (t TaskSpec) toWire() model.TaskSpec {
	return model.TaskSpec{
		Name:      t.TaskName,
		Command:   t.Command,
		Args:      t.CommandArgs,
		WorkDir:   t.WorkDir,
		Envs:      splitEnvironments(t.Environments),
		Labels:    copyLabels(t.Labels),
		Resources: t.Resources.toWire(),
	}
}

func taskSpecFromWire(t model.TaskSpec) TaskSpec {
	return TaskSpec{
		TaskName:     t.Name,
		Command:      t.Command,
		CommandArgs:  t.Args,
		Environments: joinEnvironments(t.Envs),
		WorkDir:      t.WorkDir,
		Labels:       copyLabels(t.Labels),
		Resources:    resourceClaimFromWire(t.Resources),
	}
}

// JobSpec describes a job. JobID stays empty until the scheduler accepts
// the submission. Tasks keep their insertion order.
type JobSpec struct {
	JobID        string            `json:"job_id,omitempty"`
	JobName      string            `json:"job_name"`
	Queue        string            `json:"queue,omitempty"`
	Environments string            `json:"environments,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
	Priority     int               `json:"priority"`
	MaxErrors    int               `json:"max_errors"`
	Command      string            `json:"command,omitempty"`
	WorkDir      string            `json:"work_dir,omitempty"`
	Resources    ResourceClaim     `json:"resources,omitempty"`
	Tasks        []TaskSpec        `json:"tasks"`
}

func NewJobSpec(name string) *JobSpec {
	return &JobSpec{
		JobName:  name,
		Priority: DefaultPriority,
	}
}

// NewJobSpecWithCommand creates a job whose tasks inherit command unless
// they name their own.
func NewJobSpecWithCommand(name, command string) *JobSpec {
	spec := NewJobSpec(name)
	spec.Command = command
	return spec
}

func NewJobSpecWithResources(name string, claim ResourceClaim) *JobSpec {
	spec := NewJobSpec(name)
	spec.Resources = claim
	return spec
}

func (s *JobSpec) AddTask(task TaskSpec) *JobSpec {
	s.Tasks = append(s.Tasks, task)
	return s
}

func (s *JobSpec) AddTaskCommand(name, command, commandArgs string) *JobSpec {
	return s.AddTask(NewTaskSpec(name, command, commandArgs))
}

func (s *JobSpec) SetLabel(key, value string) *JobSpec {
	if s.Labels == nil {
		s.Labels = make(map[string]string)
	}
	s.Labels[key] = value
	return s
}

// IsSubmitted reports whether the scheduler has assigned an id.
func (s *JobSpec) IsSubmitted() bool {
	return s.JobID != ""
}

// Validate checks the preconditions of a submission.
func (s *JobSpec) Validate() error {
	if len(s.Tasks) == 0 {
		return validationError("job %q has no tasks", s.JobName)
	}

	seen := make(map[string]struct{}, len(s.Tasks))
	for i, t := range s.Tasks {
		if t.TaskName == "" {
			return validationError("task %d of job %q has no name", i, s.JobName)
		}
		if _, ok := seen[t.TaskName]; ok {
			return validationError("task name %q is used more than once in job %q", t.TaskName, s.JobName)
		}
		seen[t.TaskName] = struct{}{}
	}
	return nil
}

func (s *JobSpec) toWire() model.JobSubmission {
	queue := s.Queue
	if queue == "" {
		queue = DefaultQueue
	}

	group := model.TaskGroup{
		Name:      mainGroupName,
		Envs:      splitEnvironments(s.Environments),
		Command:   s.Command,
		WorkDir:   s.WorkDir,
		Resources: s.Resources.toWire(),
		Tasks:     make([]model.TaskSpec, len(s.Tasks)),
	}
	for i, t := range s.Tasks {
		group.Tasks[i] = t.toWire()
	}

	return model.JobSubmission{
		Id:        s.JobID,
		Name:      s.JobName,
		Queue:     queue,
		Priority:  s.Priority,
		MaxErrors: s.MaxErrors,
		Labels:    copyLabels(s.Labels),
		Groups:    []model.TaskGroup{group},
	}
}

// jobSpecFromWire rebuilds the caller-facing spec from a job detail object.
// Group level settings come from the first group; tasks of every group are
// concatenated in order.
func jobSpecFromWire(job *model.Job) JobSpec {
	spec := JobSpec{
		JobID:     job.Id,
		JobName:   job.Name,
		Queue:     job.Queue,
		Labels:    copyLabels(job.Labels),
		Priority:  job.Priority,
		MaxErrors: job.MaxErrors,
	}

	for i, g := range job.Groups {
		if i == 0 {
			spec.Environments = joinEnvironments(g.Envs)
			spec.Command = g.Command
			spec.WorkDir = g.WorkDir
			spec.Resources = resourceClaimFromWire(g.Resources)
		}
		for _, t := range g.Tasks {
			spec.Tasks = append(spec.Tasks, taskSpecFromWire(t))
		}
	}
	return spec
}

// splitEnvironments turns "K1=V1;K2=V2" into its entries, dropping empty ones.
func splitEnvironments(envs string) []string {
	if envs == "" {
		return nil
	}

	var entries []string
	for _, e := range strings.Split(envs, ";") {
		if e = strings.TrimSpace(e); e != "" {
			entries = append(entries, e)
		}
	}
	return entries
}

func joinEnvironments(envs []string) string {
	return strings.Join(envs, ";")
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	c := make(map[string]string, len(labels))
	for k, v := range labels {
		c[k] = v
	}
	return c
}
