package lightsched

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/lightsched/lightsched-go/internal/model"
	"github.com/lightsched/lightsched-go/internal/requestid"
	"github.com/lightsched/lightsched-go/internal/schedtest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestCluster(t *testing.T, opts ...Option) (*schedtest.Server, *ComputingCluster, *bytes.Buffer) {
	t.Helper()

	server := schedtest.New()
	t.Cleanup(server.Close)

	logs := &bytes.Buffer{}
	opts = append([]Option{WithLogger(zerolog.New(logs).Level(zerolog.DebugLevel))}, opts...)

	host, port := server.HostPort()
	cluster := NewComputingCluster(context.Background(), host, port, opts...)
	require.True(t, cluster.IsConnected())
	return server, cluster, logs
}

func newDisconnectedCluster(t *testing.T) (*ComputingCluster, *bytes.Buffer) {
	t.Helper()

	server := schedtest.New()
	host, port := server.HostPort()
	server.Close()

	logs := &bytes.Buffer{}
	cluster := NewComputingCluster(context.Background(), host, port,
		WithTimeout(2*time.Second),
		WithLogger(zerolog.New(logs)))
	return cluster, logs
}

func helloSpec() *JobSpec {
	spec := NewJobSpec("Hello")
	spec.AddTask(TaskSpec{
		TaskName: "hello",
		Command:  "echo",
		Resources: ResourceClaim{
			NumCPUs:   1.8,
			NumGPUs:   1,
			GPUMemory: 4,
		},
	})
	return spec
}

func TestConnectDiscoversClusterName(t *testing.T) {
	require := require.New(t)

	server, cluster, _ := newTestCluster(t)
	require.Equal("test-cluster", cluster.GetName())

	host, port := server.HostPort()
	require.Equal(host+":"+strconv.Itoa(port), cluster.GetServerAddr())
	require.Nil(cluster.Ping(context.Background()))
}

func TestConnectFailureLeavesGatewayDisconnected(t *testing.T) {
	require := require.New(t)

	cluster, logs := newDisconnectedCluster(t)
	require.False(cluster.IsConnected())
	require.Contains(logs.String(), "Cannot connect to scheduler")

	ctx := context.Background()
	_, err := cluster.SubmitJob(ctx, helloSpec())
	require.ErrorIs(err, ErrNotConnected)
	require.ErrorIs(cluster.TerminateJob(ctx, "x"), ErrNotConnected)
	require.ErrorIs(cluster.Ping(ctx), ErrNotConnected)
	require.Nil(cluster.QueryJob(ctx, "x"))
	require.Empty(cluster.QueryJobList(ctx, JobFilter{}))
	require.Empty(cluster.GetNodeList(ctx))

	job := cluster.OpenJob("x")
	require.ErrorIs(job.RefreshInfo(ctx), ErrNotConnected)
	require.Empty(job.GetTaskList(ctx))
	require.Equal("", job.GetTaskLog(ctx, "t"))
}

func TestConnectUsesNameOrId(t *testing.T) {
	require := require.New(t)

	server := schedtest.New()
	defer server.Close()
	server.Name = ""

	host, port := server.HostPort()
	cluster := NewComputingCluster(context.Background(), host, port)
	require.True(cluster.IsConnected())
	require.Equal("cluster-1", cluster.GetName())
}

func TestSubmitJobPayload(t *testing.T) {
	require := require.New(t)

	server, cluster, _ := newTestCluster(t)

	spec := helloSpec()
	id, err := cluster.SubmitJob(context.Background(), spec)
	require.Nil(err)
	require.NotEmpty(id)
	require.Equal(id, spec.JobID)

	req := server.LastRequest()
	require.Equal(http.MethodPost, req.Method)
	require.Equal("/jobs", req.Path)
	require.Equal("application/json", req.Header.Get("Content-Type"))
	require.NotEmpty(req.Header.Get(requestid.Header))

	var payload map[string]interface{}
	require.Nil(json.Unmarshal(req.Body, &payload))
	require.Equal("Hello", payload["name"])
	require.Equal("default", payload["queue"])

	groups := payload["groups"].([]interface{})
	require.Len(groups, 1)
	group := groups[0].(map[string]interface{})
	require.Equal("main", group["name"])

	task := group["tasks"].([]interface{})[0].(map[string]interface{})
	resources := task["resources"].(map[string]interface{})
	require.Equal("1.8", resources["cpu"].(map[string]interface{})["cores"])
	gpu := resources["gpu"].(map[string]interface{})
	require.Equal("1", gpu["cards"])
	require.Equal("4Gi", gpu["memory"])
}

func TestSubmitJobWithoutTasksSendsNoRequest(t *testing.T) {
	require := require.New(t)

	server, cluster, _ := newTestCluster(t)

	spec := NewJobSpec("empty")
	id, err := cluster.SubmitJob(context.Background(), spec)
	require.True(IsValidation(err))
	require.Empty(id)
	require.False(spec.IsSubmitted())
	require.Empty(server.Requests())

	_, err = cluster.SubmitJob(context.Background(), nil)
	require.True(IsValidation(err))
}

func TestSubmitJobRejectedReturnsBody(t *testing.T) {
	require := require.New(t)

	server, cluster, _ := newTestCluster(t)
	server.Fail(http.MethodPost, "/jobs", http.StatusBadRequest, "queue gpu does not exist")

	spec := helloSpec()
	_, err := cluster.SubmitJob(context.Background(), spec)
	require.NotNil(err)
	require.Equal("queue gpu does not exist", err.Error())
	require.Empty(spec.JobID)

	var statusErr *StatusError
	require.ErrorAs(err, &statusErr)
	require.Equal(http.StatusBadRequest, statusErr.StatusCode)
}

func TestSubmitJobMalformedResponse(t *testing.T) {
	require := require.New(t)

	server, cluster, _ := newTestCluster(t)
	server.Fail(http.MethodPost, "/jobs", http.StatusCreated, "not json")

	_, err := cluster.SubmitJob(context.Background(), helloSpec())
	var decodeErr *DecodeError
	require.ErrorAs(err, &decodeErr)

	server.Fail(http.MethodPost, "/jobs", http.StatusCreated, `{"id":""}`)
	_, err = cluster.SubmitJob(context.Background(), helloSpec())
	require.ErrorAs(err, &decodeErr)
}

func TestQueryJobListOmitsUnsetParameters(t *testing.T) {
	require := require.New(t)

	server, cluster, _ := newTestCluster(t)

	state := JobExecuting
	cluster.QueryJobList(context.Background(), JobFilter{State: &state, Offset: 0, Limit: -1})

	req := server.LastRequest()
	require.Equal("/jobs", req.Path)
	require.Equal("Executing", req.Query.Get("state"))
	require.NotContains(req.Query, "offset")
	require.NotContains(req.Query, "limits")
	require.NotContains(req.Query, "sort")

	cluster.QueryJobList(context.Background(), JobFilter{})
	require.Empty(server.LastRequest().Query)
}

func TestQueryJobListPagesAndDecodesOrdinals(t *testing.T) {
	require := require.New(t)

	server, cluster, _ := newTestCluster(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := cluster.SubmitJob(ctx, helloSpec())
		require.Nil(err)
		ids = append(ids, id)
	}
	server.SetJobState(ids[1], "Executing", 40)

	jobs := cluster.QueryJobList(ctx, JobFilter{Offset: 1, Limit: 1, Sort: SortBySubmit})
	req := server.LastRequest()
	require.Equal("1", req.Query.Get("offset"))
	require.Equal("1", req.Query.Get("limits"))
	require.Equal("submit", req.Query.Get("sort"))

	require.Len(jobs, 1)
	require.Equal(ids[1], jobs[0].ID())
	require.Equal(JobExecuting, jobs[0].Info().State)
	require.Equal(40, jobs[0].Info().Progress)
	require.Equal(1, jobs[0].Info().TotalTasks)
	require.Equal("Hello", jobs[0].Spec().JobName)
}

func TestQueryJobListFailureIsEmpty(t *testing.T) {
	require := require.New(t)

	server, cluster, logs := newTestCluster(t)
	server.Fail(http.MethodGet, "/jobs", http.StatusInternalServerError, "boom")

	require.Empty(cluster.QueryJobList(context.Background(), JobFilter{}))
	require.Contains(logs.String(), "Unable to list jobs")
}

func TestQueryNonexistentJobReturnsNilAndLogs(t *testing.T) {
	require := require.New(t)

	_, cluster, logs := newTestCluster(t)

	require.Nil(cluster.QueryJob(context.Background(), "no-such-job"))
	require.Contains(logs.String(), "Unable to query job")
	require.Contains(logs.String(), "no-such-job")
}

func TestQueryJob(t *testing.T) {
	require := require.New(t)

	_, cluster, _ := newTestCluster(t)
	ctx := context.Background()

	id, err := cluster.SubmitJob(ctx, helloSpec())
	require.Nil(err)

	job := cluster.QueryJob(ctx, id)
	require.NotNil(job)
	require.Equal(id, job.ID())
	require.Equal(JobQueued, job.Info().State)
	require.NotEmpty(job.Info().SubmitTime)
	require.Len(job.Spec().Tasks, 1)
	require.Equal(1.8, job.Spec().Tasks[0].Resources.NumCPUs)
	require.Same(cluster, job.Cluster())
}

func TestTerminateAndDeleteJob(t *testing.T) {
	require := require.New(t)

	server, cluster, _ := newTestCluster(t)
	ctx := context.Background()

	id, err := cluster.SubmitJob(ctx, helloSpec())
	require.Nil(err)

	require.Nil(cluster.TerminateJob(ctx, id))
	req := server.LastRequest()
	require.Equal(http.MethodPut, req.Method)
	require.Equal("/jobs/"+id+"/_terminate", req.Path)

	stored, _ := server.Job(id)
	require.Equal("Terminated", stored.State.Name)

	err = cluster.TerminateJob(ctx, id)
	var statusErr *StatusError
	require.ErrorAs(err, &statusErr)
	require.Equal(http.StatusConflict, statusErr.StatusCode)

	require.Nil(cluster.DeleteJob(ctx, id))
	require.Equal(http.MethodDelete, server.LastRequest().Method)

	err = cluster.DeleteJob(ctx, id)
	require.True(IsNotFound(err))

	require.True(IsValidation(cluster.DeleteJob(ctx, "")))
}

func TestNodes(t *testing.T) {
	require := require.New(t)

	server, cluster, _ := newTestCluster(t)
	ctx := context.Background()

	server.AddNode(model.Node{
		Name:     "node-b",
		Address:  "10.0.0.2",
		Platform: model.Platform{Kind: "linux", Name: "ubuntu", Family: "debian", Version: "22.04"},
		State:    model.StateName("Online"),
		Resources: &model.Resources{
			Cpu:    &model.Cpu{Cores: "16"},
			Memory: "65536Mi",
		},
	})
	server.AddNode(model.Node{Name: "node-a", State: model.StateName("Offline")})

	nodes := cluster.GetNodeList(ctx)
	require.Len(nodes, 2)
	require.Equal("node-a", nodes[0].Name)
	require.Equal(NodeOffline, nodes[0].State)
	require.Equal(NodeOnline, nodes[1].State)
	require.Equal(16.0, nodes[1].Resources.NumCPUs)
	require.Equal(65536, nodes[1].Resources.Memory)
	require.Equal("debian", nodes[1].Platform.Family)

	node, err := cluster.GetNode(ctx, "node-b")
	require.Nil(err)
	require.Equal("10.0.0.2", node.Address)

	_, err = cluster.GetNode(ctx, "node-z")
	require.True(IsNotFound(err))

	require.Nil(cluster.OfflineNode(ctx, "node-b", WithKillTasks()))
	req := server.LastRequest()
	require.Equal("/nodes/node-b/_offline", req.Path)
	require.Equal("yes", req.Query.Get("kill"))
	stored, _ := server.Node("node-b")
	require.Equal("Offline", stored.State.Name)

	require.Nil(cluster.OfflineNode(ctx, "node-b"))
	require.NotContains(server.LastRequest().Query, "kill")

	require.Nil(cluster.OnlineNode(ctx, "node-b"))
	stored, _ = server.Node("node-b")
	require.Equal("Online", stored.State.Name)
}

func TestMetricsAreRecorded(t *testing.T) {
	require := require.New(t)

	reg := prometheus.NewRegistry()
	server, cluster, _ := newTestCluster(t, WithMetrics(reg))
	ctx := context.Background()

	_, err := cluster.SubmitJob(ctx, helloSpec())
	require.Nil(err)

	server.Fail(http.MethodGet, "/healthz", http.StatusServiceUnavailable, "down")
	require.NotNil(cluster.Ping(ctx))

	count, err := testutil.GatherAndCount(reg, "lightsched_client_requests_total")
	require.Nil(err)
	require.Equal(3, count)

	// a second gateway on the same registry shares the collectors
	host, port := server.HostPort()
	other := NewComputingCluster(ctx, host, port, WithMetrics(reg))
	require.True(other.IsConnected())
}

func TestContextLoggerIsPreferred(t *testing.T) {
	require := require.New(t)

	_, cluster, optionLogs := newTestCluster(t)

	ctxLogs := &bytes.Buffer{}
	ctx := zerolog.New(ctxLogs).WithContext(context.Background())

	require.Nil(cluster.QueryJob(ctx, "missing"))
	require.Contains(ctxLogs.String(), "Unable to query job")
	require.NotContains(optionLogs.String(), "Unable to query job")
}
