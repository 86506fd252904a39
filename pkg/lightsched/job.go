package lightsched

import (
	"context"
	"net/http"
	"net/url"

	"github.com/lightsched/lightsched-go/internal/httpclient"
	"github.com/lightsched/lightsched-go/internal/model"
)

// Job is a handle on a submitted job. It caches the spec and the last
// observed status; only RefreshInfo updates the cache. A Job keeps a
// reference to its ComputingCluster and must not outlive it.
type Job struct {
	cluster *ComputingCluster
	spec    JobSpec
	info    JobInfo
}

func newJobFromWire(cluster *ComputingCluster, job *model.Job) *Job {
	return &Job{
		cluster: cluster,
		spec:    jobSpecFromWire(job),
		info:    jobInfoFromWire(job),
	}
}

func (j *Job) ID() string {
	return j.spec.JobID
}

// Spec returns the cached job spec.
func (j *Job) Spec() JobSpec {
	return j.spec
}

// Info returns the status observed by the last successful refresh.
func (j *Job) Info() JobInfo {
	return j.info
}

func (j *Job) Cluster() *ComputingCluster {
	return j.cluster
}

// RefreshInfo fetches the job and replaces the cached spec and status. On
// failure the cache is left unchanged.
func (j *Job) RefreshInfo(ctx context.Context) error {
	if !j.cluster.IsConnected() {
		return ErrNotConnected
	}

	job, err := j.cluster.fetchJob(ctx, j.ID())
	if err != nil {
		return err
	}

	if job.Id == "" {
		job.Id = j.ID()
	}
	j.spec = jobSpecFromWire(job)
	j.info = jobInfoFromWire(job)
	return nil
}

// GetTaskList returns the status of every task of the job. Any failure
// yields an empty result; the reason is logged.
func (j *Job) GetTaskList(ctx context.Context) []TaskInfo {
	tasks := []model.Task{}
	err := j.cluster.invoke(ctx, httpclient.Call{
		Operation: "list_tasks",
		Method:    http.MethodGet,
		Path:      "/tasks",
		Query:     url.Values{"jobid": []string{j.ID()}},
		Expect:    http.StatusOK,
	}, &tasks)
	if err != nil {
		j.cluster.loggerFor(ctx).Warn().Err(err).Str("jobId", j.ID()).Msg("Unable to list tasks")
		return nil
	}

	result := make([]TaskInfo, 0, len(tasks))
	for i := range tasks {
		result = append(result, taskInfoFromWire(&tasks[i]))
	}
	return result
}

func (j *Job) GetTask(ctx context.Context, id string) (TaskInfo, error) {
	if id == "" {
		return TaskInfo{}, validationError("task id is required")
	}

	task := model.Task{}
	err := j.cluster.invoke(ctx, httpclient.Call{
		Operation: "get_task",
		Method:    http.MethodGet,
		Path:      "/tasks/" + url.PathEscape(id),
		Expect:    http.StatusOK,
	}, &task)
	if err != nil {
		return TaskInfo{}, err
	}
	return taskInfoFromWire(&task), nil
}

// RefreshTaskInfo updates tasks in place with a single request. Entries are
// matched to the response by TaskID; entries the scheduler does not return
// keep their previous values. An empty slice is rejected.
func (j *Job) RefreshTaskInfo(ctx context.Context, tasks []TaskInfo) error {
	if len(tasks) == 0 {
		return validationError("no tasks to refresh")
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.TaskID == "" {
			return validationError("task %q has no id", t.TaskName)
		}
		ids = append(ids, t.TaskID)
	}

	received := []model.Task{}
	err := j.cluster.invoke(ctx, httpclient.Call{
		Operation: "refresh_tasks",
		Method:    http.MethodGet,
		Path:      "/tasks",
		Query:     url.Values{"ids": []string{joinIds(ids)}},
		Expect:    http.StatusOK,
	}, &received)
	if err != nil {
		return err
	}

	byId := make(map[string]TaskInfo, len(received))
	for i := range received {
		info := taskInfoFromWire(&received[i])
		byId[info.TaskID] = info
	}

	missing := 0
	for i := range tasks {
		if info, ok := byId[tasks[i].TaskID]; ok {
			tasks[i].update(info)
		} else {
			missing++
		}
	}
	if missing > 0 {
		j.cluster.loggerFor(ctx).Debug().Str("jobId", j.ID()).Int("missing", missing).Msg("Scheduler did not return every requested task")
	}
	return nil
}

// GetTaskLog returns the log text of a task. Any failure yields "";
// the reason is logged.
func (j *Job) GetTaskLog(ctx context.Context, taskId string) string {
	if taskId == "" {
		j.cluster.loggerFor(ctx).Warn().Msg("Task id is required to fetch a log")
		return ""
	}

	text, err := j.cluster.invokeText(ctx, httpclient.Call{
		Operation: "task_log",
		Method:    http.MethodGet,
		Path:      "/tasks/" + url.PathEscape(taskId) + "/log",
		Expect:    http.StatusOK,
	})
	if err != nil {
		j.cluster.loggerFor(ctx).Warn().Err(err).Str("taskId", taskId).Msg("Unable to fetch task log")
		return ""
	}
	return text
}

// Terminate asks the scheduler to stop the job. The cached status is not
// updated.
func (j *Job) Terminate(ctx context.Context) error {
	return j.cluster.TerminateJob(ctx, j.ID())
}

// Delete removes the job from the scheduler.
func (j *Job) Delete(ctx context.Context) error {
	return j.cluster.DeleteJob(ctx, j.ID())
}

// Halt pauses dispatching of the job's remaining tasks.
func (j *Job) Halt(ctx context.Context) error {
	return j.cluster.jobCommand(ctx, "halt_job", http.MethodPut, j.ID(), "_halt")
}

// Resume continues a halted job.
func (j *Job) Resume(ctx context.Context) error {
	return j.cluster.jobCommand(ctx, "resume_job", http.MethodPut, j.ID(), "_resume")
}

// TerminateTask stops a single task of the job.
func (j *Job) TerminateTask(ctx context.Context, taskId string) error {
	if taskId == "" {
		return validationError("task id is required")
	}

	return j.cluster.invoke(ctx, httpclient.Call{
		Operation: "terminate_task",
		Method:    http.MethodPut,
		Path:      "/tasks/" + url.PathEscape(taskId) + "/_terminate",
		Expect:    http.StatusOK,
	}, nil)
}
