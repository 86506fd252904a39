package lightsched

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lightsched/lightsched-go/internal/httpclient"
	"github.com/lightsched/lightsched-go/internal/metrics"
	"github.com/lightsched/lightsched-go/internal/model"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComputingCluster is a connection to one scheduler instance. Every call
// blocks until the scheduler answers. A ComputingCluster does no locking:
// callers issuing requests from several goroutines must serialize them or
// use one ComputingCluster per goroutine.
type ComputingCluster struct {
	serverAddr string
	name       string
	connected  bool
	client     *httpclient.Client
	metrics    *metrics.ClientMetrics
	logger     *zerolog.Logger
}

// NewComputingCluster connects to the scheduler at server:port and asks it
// for its identity. Construction never fails: when the scheduler cannot be
// reached or answers unexpectedly the failure is logged and the returned
// gateway reports IsConnected() == false.
func NewComputingCluster(ctx context.Context, server string, port int, opts ...Option) *ComputingCluster {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	c := &ComputingCluster{
		serverAddr: net.JoinHostPort(server, strconv.Itoa(port)),
		logger:     o.logger,
	}

	if o.registerer != nil {
		m, err := metrics.New(o.registerer)
		if err != nil {
			c.loggerFor(ctx).Warn().Err(err).Msg("Unable to register client metrics")
		} else {
			c.metrics = m
		}
	}

	baseUrl, err := url.Parse("http://" + c.serverAddr)
	if err != nil {
		c.loggerFor(ctx).Error().Err(err).Str("server", c.serverAddr).Msg("Invalid scheduler address")
		return c
	}

	c.client = httpclient.NewClient(baseUrl, httpclient.Options{
		Timeout:    o.timeout,
		HTTPClient: o.httpClient,
		Observer:   c.observe,
	})

	identity := model.ClusterIdentity{}
	ctx, logger := c.operationContext(ctx, "discover_cluster")
	_, err = c.client.DoJSON(ctx, httpclient.Call{
		Operation: "discover_cluster",
		Method:    http.MethodGet,
		Path:      "/cluster",
		Expect:    http.StatusOK,
	}, &identity)
	if err != nil {
		logger.Error().Err(err).Str("server", c.serverAddr).Msg("Cannot connect to scheduler")
		c.client = nil
		return c
	}

	c.name = identity.Name
	if c.name == "" {
		c.name = identity.Id
	}
	c.connected = true
	logger.Debug().Str("server", c.serverAddr).Str("cluster", c.name).Msg("Connected to scheduler")
	return c
}

func (c *ComputingCluster) IsConnected() bool {
	return c != nil && c.connected
}

// GetName returns the cluster name reported by the scheduler.
func (c *ComputingCluster) GetName() string {
	return c.name
}

// GetServerAddr returns the "host:port" the gateway was created with.
func (c *ComputingCluster) GetServerAddr() string {
	return c.serverAddr
}

// Ping checks the scheduler's health endpoint.
func (c *ComputingCluster) Ping(ctx context.Context) error {
	return c.invoke(ctx, httpclient.Call{
		Operation: "health_check",
		Method:    http.MethodGet,
		Path:      "/healthz",
		Expect:    http.StatusOK,
	}, nil)
}

// SubmitJob sends spec to the scheduler. On success the assigned id is
// stored in spec.JobID and returned. A spec without tasks is rejected
// without contacting the scheduler. On failure spec.JobID is left as it was
// and, for a rejected submission, the error message is the response body.
func (c *ComputingCluster) SubmitJob(ctx context.Context, spec *JobSpec) (string, error) {
	if spec == nil {
		return "", validationError("job spec is required")
	}
	if err := spec.Validate(); err != nil {
		return "", err
	}

	created := model.Created{}
	err := c.invoke(ctx, httpclient.Call{
		Operation: "submit_job",
		Method:    http.MethodPost,
		Path:      "/jobs",
		Input:     spec.toWire(),
		Expect:    http.StatusCreated,
	}, &created)
	if err != nil {
		return "", err
	}

	if created.Id == "" {
		return "", &DecodeError{Operation: "submit_job", Err: errors.New("response carries no job id")}
	}

	spec.JobID = created.Id
	c.loggerFor(ctx).Debug().Str("jobId", created.Id).Str("job", spec.JobName).Int("tasks", len(spec.Tasks)).Msg("Job submitted")
	return created.Id, nil
}

// TerminateJob asks the scheduler to stop a job. The request returns as soon
// as it is accepted; poll the job until it reaches a terminal state to know
// it has stopped.
func (c *ComputingCluster) TerminateJob(ctx context.Context, id string) error {
	return c.jobCommand(ctx, "terminate_job", http.MethodPut, id, "_terminate")
}

func (c *ComputingCluster) DeleteJob(ctx context.Context, id string) error {
	return c.jobCommand(ctx, "delete_job", http.MethodDelete, id, "")
}

// QueryJob fetches one job. It returns nil, after logging the reason, when
// the job does not exist or cannot be fetched.
func (c *ComputingCluster) QueryJob(ctx context.Context, id string) *Job {
	job, err := c.fetchJob(ctx, id)
	if err != nil {
		c.loggerFor(ctx).Warn().Err(err).Str("jobId", id).Msg("Unable to query job")
		return nil
	}

	if job.Id == "" {
		job.Id = id
	}
	return newJobFromWire(c, job)
}

// QueryJobList lists jobs matching filter. Any failure yields an empty
// result; the reason is logged.
func (c *ComputingCluster) QueryJobList(ctx context.Context, filter JobFilter) []*Job {
	jobs := []model.Job{}
	err := c.invoke(ctx, httpclient.Call{
		Operation: "list_jobs",
		Method:    http.MethodGet,
		Path:      "/jobs",
		Query:     filter.query(),
		Expect:    http.StatusOK,
	}, &jobs)
	if err != nil {
		c.loggerFor(ctx).Warn().Err(err).Msg("Unable to list jobs")
		return nil
	}

	result := make([]*Job, 0, len(jobs))
	for i := range jobs {
		result = append(result, newJobFromWire(c, &jobs[i]))
	}
	return result
}

// OpenJob returns a handle for a job known by id without fetching it. Its
// cached spec and info stay empty until RefreshInfo is called.
func (c *ComputingCluster) OpenJob(id string) *Job {
	return &Job{
		cluster: c,
		spec:    JobSpec{JobID: id},
	}
}

// GetNodeList lists the worker nodes. Any failure yields an empty result;
// the reason is logged.
func (c *ComputingCluster) GetNodeList(ctx context.Context) []NodeInfo {
	nodes := []model.Node{}
	err := c.invoke(ctx, httpclient.Call{
		Operation: "list_nodes",
		Method:    http.MethodGet,
		Path:      "/nodes",
		Expect:    http.StatusOK,
	}, &nodes)
	if err != nil {
		c.loggerFor(ctx).Warn().Err(err).Msg("Unable to list nodes")
		return nil
	}

	result := make([]NodeInfo, 0, len(nodes))
	for i := range nodes {
		result = append(result, nodeInfoFromWire(&nodes[i]))
	}
	return result
}

func (c *ComputingCluster) GetNode(ctx context.Context, name string) (NodeInfo, error) {
	if name == "" {
		return NodeInfo{}, validationError("node name is required")
	}

	node := model.Node{}
	err := c.invoke(ctx, httpclient.Call{
		Operation: "get_node",
		Method:    http.MethodGet,
		Path:      "/nodes/" + url.PathEscape(name),
		Expect:    http.StatusOK,
	}, &node)
	if err != nil {
		return NodeInfo{}, err
	}
	return nodeInfoFromWire(&node), nil
}

// OnlineNode makes a node available for scheduling again.
func (c *ComputingCluster) OnlineNode(ctx context.Context, name string) error {
	return c.nodeCommand(ctx, "online_node", name, "_online", nil)
}

// OfflineNode stops the scheduler from dispatching tasks to a node.
func (c *ComputingCluster) OfflineNode(ctx context.Context, name string, opts ...OfflineOption) error {
	o := offlineOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var query url.Values
	if o.kill {
		query = url.Values{"kill": []string{"yes"}}
	}
	return c.nodeCommand(ctx, "offline_node", name, "_offline", query)
}

func (c *ComputingCluster) jobCommand(ctx context.Context, operation, method, id, action string) error {
	if id == "" {
		return validationError("job id is required")
	}

	path := "/jobs/" + url.PathEscape(id)
	if action != "" {
		path += "/" + action
	}

	err := c.invoke(ctx, httpclient.Call{
		Operation: operation,
		Method:    method,
		Path:      path,
		Expect:    http.StatusOK,
	}, nil)
	if err == nil {
		c.loggerFor(ctx).Debug().Str("jobId", id).Str("operation", operation).Msg("Job request accepted")
	}
	return err
}

func (c *ComputingCluster) nodeCommand(ctx context.Context, operation, name, action string, query url.Values) error {
	if name == "" {
		return validationError("node name is required")
	}

	return c.invoke(ctx, httpclient.Call{
		Operation: operation,
		Method:    http.MethodPut,
		Path:      fmt.Sprintf("/nodes/%s/%s", url.PathEscape(name), action),
		Query:     query,
		Expect:    http.StatusOK,
	}, nil)
}

func (c *ComputingCluster) fetchJob(ctx context.Context, id string) (*model.Job, error) {
	if id == "" {
		return nil, validationError("job id is required")
	}

	job := &model.Job{}
	err := c.invoke(ctx, httpclient.Call{
		Operation: "get_job",
		Method:    http.MethodGet,
		Path:      "/jobs/" + url.PathEscape(id),
		Expect:    http.StatusOK,
	}, job)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// invoke runs one call and decodes the JSON response into output, or
// ignores the body when output is nil.
func (c *ComputingCluster) invoke(ctx context.Context, call httpclient.Call, output interface{}) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	ctx, logger := c.operationContext(ctx, call.Operation)
	if _, err := c.client.DoJSON(ctx, call, output); err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			logger.Error().Err(err).Msg("Malformed response from scheduler")
		} else {
			logger.Debug().Err(err).Msg("Request failed")
		}
		return err
	}
	return nil
}

// invokeText runs one call and returns the raw response body.
func (c *ComputingCluster) invokeText(ctx context.Context, call httpclient.Call) (string, error) {
	if !c.IsConnected() {
		return "", ErrNotConnected
	}

	ctx, logger := c.operationContext(ctx, call.Operation)
	resp, err := c.client.Do(ctx, call)
	if err != nil {
		logger.Debug().Err(err).Msg("Request failed")
		return "", err
	}
	return string(resp.Body), nil
}

func (c *ComputingCluster) observe(operation string, statusCode int, elapsed time.Duration, err error) {
	c.metrics.Observe(operation, statusCode, elapsed, resultOf(err))
}

// loggerFor prefers the logger carried by ctx, then the one given with
// WithLogger, then the global logger.
func (c *ComputingCluster) loggerFor(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if c != nil && c.logger != nil {
		return c.logger
	}
	return &log.Logger
}

func (c *ComputingCluster) operationContext(ctx context.Context, operation string) (context.Context, *zerolog.Logger) {
	l := c.loggerFor(ctx).With().Str("operation", operation).Logger()
	return l.WithContext(ctx), &l
}

func (f JobFilter) query() url.Values {
	query := url.Values{}
	if f.State != nil {
		query.Set("state", f.State.String())
	}
	if f.Offset > 0 {
		query.Set("offset", strconv.Itoa(f.Offset))
	}
	if f.Limit > 0 {
		query.Set("limits", strconv.Itoa(f.Limit))
	}
	if sort := f.Sort.queryValue(); sort != "" {
		query.Set("sort", sort)
	}
	return query
}

func joinIds(ids []string) string {
	return strings.Join(ids, ",")
}
