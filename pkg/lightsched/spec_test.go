package lightsched

import (
	"encoding/json"
	"testing"

	"github.com/lightsched/lightsched-go/internal/model"
	"github.com/stretchr/testify/require"
)

func TestNewJobSpecDefaults(t *testing.T) {
	require := require.New(t)

	spec := NewJobSpec("j")
	require.Equal(DefaultPriority, spec.Priority)
	require.False(spec.IsSubmitted())
	require.Empty(spec.Tasks)
}

func TestJobSpecValidation(t *testing.T) {
	require := require.New(t)

	spec := NewJobSpec("empty")
	require.True(IsValidation(spec.Validate()))

	spec.AddTaskCommand("a", "echo", "1").AddTaskCommand("a", "echo", "2")
	err := spec.Validate()
	require.True(IsValidation(err))
	require.Contains(err.Error(), `"a"`)

	spec = NewJobSpec("unnamed").AddTask(TaskSpec{Command: "true"})
	require.True(IsValidation(spec.Validate()))

	spec = NewJobSpec("ok").AddTaskCommand("a", "echo", "").AddTaskCommand("b", "echo", "")
	require.Nil(spec.Validate())
}

func TestJobSpecWireShape(t *testing.T) {
	require := require.New(t)

	spec := NewJobSpecWithCommand("render", "blender")
	spec.Environments = "A=1;;B=2"
	spec.WorkDir = "/data"
	spec.SetLabel("team", "vfx")
	spec.AddTask(TaskSpec{TaskName: "frame-1", CommandArgs: "-f 1", Environments: "C=3", Labels: map[string]string{"k": "v"}})

	b, err := json.Marshal(spec.toWire())
	require.Nil(err)
	require.JSONEq(`{
		"name": "render",
		"queue": "default",
		"priority": 1000,
		"max_errors": 0,
		"labels": {"team": "vfx"},
		"groups": [{
			"name": "main",
			"envs": ["A=1", "B=2"],
			"command": "blender",
			"workdir": "/data",
			"tasks": [{"name": "frame-1", "args": "-f 1", "envs": ["C=3"], "labels": {"k": "v"}}]
		}]
	}`, string(b))
}

func TestJobSpecKeepsExplicitQueueAndId(t *testing.T) {
	require := require.New(t)

	spec := NewJobSpec("j").AddTaskCommand("t", "true", "")
	spec.Queue = "gpu"
	spec.JobID = "fixed-id"

	wire := spec.toWire()
	require.Equal("gpu", wire.Queue)
	require.Equal("fixed-id", wire.Id)
}

func TestJobSpecFromWireConcatenatesGroups(t *testing.T) {
	require := require.New(t)

	job := &model.Job{
		JobSubmission: model.JobSubmission{
			Id:       "j1",
			Name:     "multi",
			Queue:    "default",
			Priority: 10,
			Groups: []model.TaskGroup{
				{Name: "main", Envs: []string{"A=1"}, Command: "run", Tasks: []model.TaskSpec{{Name: "a"}, {Name: "b"}}},
				{Name: "extra", Command: "other", Tasks: []model.TaskSpec{{Name: "c"}}},
			},
		},
	}

	spec := jobSpecFromWire(job)
	require.Equal("j1", spec.JobID)
	require.Equal("A=1", spec.Environments)
	require.Equal("run", spec.Command)
	require.Len(spec.Tasks, 3)
	require.Equal("c", spec.Tasks[2].TaskName)
}
