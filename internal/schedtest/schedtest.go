// Package schedtest provides an in-memory scheduler that speaks the REST
// protocol, for tests of the client and the command line.
package schedtest

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lightsched/lightsched-go/internal/jsonbody"
	"github.com/lightsched/lightsched-go/internal/model"
)

const timeFormat = "2006-01-02 15:04:05"

var (
	jobStates  = []string{"Queued", "Executing", "Halted", "Completed", "Failed", "Terminated"}
	taskStates = []string{"Queued", "Scheduled", "Dispatching", "Executing", "Completed", "Failed", "Aborted", "Terminated"}
	nodeStates = []string{"Online", "Offline", "Unknown"}
)

// Request is a request as received by the server.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

type failure struct {
	status int
	body   string
}

// Server is a scripted scheduler. List endpoints send states as ordinals and
// detail endpoints send names, as the real scheduler does.
type Server struct {
	*httptest.Server

	Name string

	mu       sync.Mutex
	jobs     map[string]*model.Job
	jobOrder []string
	tasks    map[string]*model.Task
	logs     map[string]string
	nodes    map[string]*model.Node
	requests []Request
	failures map[string]failure
	nextId   int
	now      func() time.Time
}

func New() *Server {
	s := &Server{
		Name:     "test-cluster",
		jobs:     map[string]*model.Job{},
		tasks:    map[string]*model.Task{},
		logs:     map[string]string{},
		nodes:    map[string]*model.Node{},
		failures: map[string]failure{},
		now:      time.Now,
	}
	s.Server = httptest.NewServer(s.router())
	return s
}

// HostPort splits the listening address for NewComputingCluster.
func (s *Server) HostPort() (string, int) {
	u, _ := url.Parse(s.URL)
	host, port, _ := net.SplitHostPort(u.Host)
	p, _ := strconv.Atoi(port)
	return host, p
}

// Fail makes every subsequent request with the given method and path
// answer with status and body.
func (s *Server) Fail(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, body: body}
}

// Requests returns the requests received so far, excluding the discovery call.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Request
	for _, r := range s.requests {
		if r.Path != "/cluster" {
			result = append(result, r)
		}
	}
	return result
}

// LastRequest returns the most recent request, or the zero value.
func (s *Server) LastRequest() Request {
	requests := s.Requests()
	if len(requests) == 0 {
		return Request{}
	}
	return requests[len(requests)-1]
}

// AddJob stores a job and its tasks. Missing task ids are generated.
func (s *Server) AddJob(job model.Job) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addJob(job)
}

// SetJobState changes a job's state and progress.
func (s *Server) SetJobState(id, state string, progress int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok {
		j.State = model.StateName(state)
		j.Progress = model.FlexInt(progress)
	}
}

// SetTaskState changes a task's state.
func (s *Server) SetTaskState(id, state string, progress int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.State = model.StateName(state)
		t.Progress = model.FlexInt(progress)
	}
}

func (s *Server) SetTaskLog(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[id] = text
}

// TaskIds lists the ids of a job's tasks in submission order.
func (s *Server) TaskIds(jobId string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, t := range s.jobTasks(jobId) {
		ids = append(ids, t.Id)
	}
	return ids
}

// Job returns a copy of a stored job.
func (s *Server) Job(id string) (model.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return *j, true
}

func (s *Server) AddNode(node model.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := node
	s.nodes[node.Name] = &n
}

// Node returns a copy of a stored node.
func (s *Server) Node(name string) (model.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[name]
	if !ok {
		return model.Node{}, false
	}
	return *n, true
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Use(s.scripted)

	r.Get("/cluster", func(w http.ResponseWriter, r *http.Request) {
		jsonbody.Write(w, r, http.StatusOK, model.ClusterIdentity{Id: "cluster-1", Name: s.Name})
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Healthy"))
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/", s.submitJob)
		r.Get("/", s.listJobs)
		r.Get("/{id}", s.getJob)
		r.Delete("/{id}", s.deleteJob)
		r.Put("/{id}/_terminate", s.jobAction("Terminated"))
		r.Put("/{id}/_halt", s.jobAction("Halted"))
		r.Put("/{id}/_resume", s.jobAction("Queued"))
	})

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", s.listTasks)
		r.Get("/{id}", s.getTask)
		r.Get("/{id}/log", s.getTaskLog)
		r.Put("/{id}/_terminate", s.terminateTask)
	})

	r.Route("/nodes", func(r chi.Router) {
		r.Get("/", s.listNodes)
		r.Get("/{name}", s.getNode)
		r.Put("/{name}/_online", s.nodeAction("Online"))
		r.Put("/{name}/_offline", s.nodeAction("Offline"))
	})

	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) scripted(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if ok {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	submission := model.JobSubmission{}
	if err := jsonbody.Decode(w, r, &submission); err != nil {
		jsonbody.WriteError(w, r, err)
		return
	}

	if len(submission.Groups) == 0 || len(submission.Groups[0].Tasks) == 0 {
		http.Error(w, "job has no tasks", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if submission.Id != "" {
		if _, ok := s.jobs[submission.Id]; ok {
			s.mu.Unlock()
			http.Error(w, fmt.Sprintf("job %s already exists", submission.Id), http.StatusConflict)
			return
		}
	}
	id := s.addJob(model.Job{JobSubmission: submission, State: model.StateName("Queued")})
	s.mu.Unlock()

	jsonbody.Write(w, r, http.StatusCreated, model.Created{Id: id})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	s.mu.Lock()
	jobs := make([]model.Job, 0, len(s.jobOrder))
	for _, id := range s.jobOrder {
		j := s.jobs[id]
		if state := query.Get("state"); state != "" && j.State.Name != state {
			continue
		}
		jobs = append(jobs, s.jobView(j, true))
	}
	s.mu.Unlock()

	if query.Get("sort") == "state" {
		sort.SliceStable(jobs, func(i, k int) bool { return jobs[i].State.Ordinal < jobs[k].State.Ordinal })
	}

	offset, _ := strconv.Atoi(query.Get("offset"))
	if offset > len(jobs) {
		offset = len(jobs)
	}
	jobs = jobs[offset:]
	if limit, _ := strconv.Atoi(query.Get("limits")); limit > 0 && limit < len(jobs) {
		jobs = jobs[:limit]
	}

	jsonbody.Write(w, r, http.StatusOK, jobs)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[chi.URLParam(r, "id")]
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	jsonbody.Write(w, r, http.StatusOK, s.jobView(j, false))
}

func (s *Server) deleteJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "id")
	if _, ok := s.jobs[id]; !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	for _, t := range s.jobTasks(id) {
		delete(s.tasks, t.Id)
	}
	delete(s.jobs, id)
	for i, o := range s.jobOrder {
		if o == id {
			s.jobOrder = append(s.jobOrder[:i], s.jobOrder[i+1:]...)
			break
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) jobAction(state string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		j, ok := s.jobs[chi.URLParam(r, "id")]
		if !ok {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		if isTerminal(j.State.Name) {
			http.Error(w, fmt.Sprintf("job %s is %s", j.Id, j.State.Name), http.StatusConflict)
			return
		}

		j.State = model.StateName(state)
		if state == "Terminated" {
			j.FinishTime = model.FlexString(s.now().Format(timeFormat))
			for _, t := range s.jobTasks(j.Id) {
				if !isTerminal(t.State.Name) {
					t.State = model.StateName("Terminated")
				}
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	var tasks []*model.Task
	switch {
	case query.Get("ids") != "":
		for _, id := range strings.Split(query.Get("ids"), ",") {
			if t, ok := s.tasks[id]; ok {
				tasks = append(tasks, t)
			}
		}
	case query.Get("jobid") != "":
		tasks = s.jobTasks(query.Get("jobid"))
	default:
		http.Error(w, "either jobid or ids is required", http.StatusBadRequest)
		return
	}

	result := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		view := *t
		view.State = model.StateOrdinal(indexOf(taskStates, t.State.Name))
		result = append(result, view)
	}
	jsonbody.Write(w, r, http.StatusOK, result)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[chi.URLParam(r, "id")]
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	jsonbody.Write(w, r, http.StatusOK, t)
}

func (s *Server) getTaskLog(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "id")
	if _, ok := s.tasks[id]; !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(s.logs[id]))
}

func (s *Server) terminateTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[chi.URLParam(r, "id")]
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	if !isTerminal(t.State.Name) {
		t.State = model.StateName("Terminated")
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.nodes))
	for name := range s.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]model.Node, 0, len(names))
	for _, name := range names {
		view := *s.nodes[name]
		view.State = model.StateOrdinal(indexOf(nodeStates, view.State.Name))
		result = append(result, view)
	}
	jsonbody.Write(w, r, http.StatusOK, result)
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[chi.URLParam(r, "name")]
	if !ok {
		http.Error(w, "node not found", http.StatusNotFound)
		return
	}
	jsonbody.Write(w, r, http.StatusOK, n)
}

func (s *Server) nodeAction(state string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		n, ok := s.nodes[chi.URLParam(r, "name")]
		if !ok {
			http.Error(w, "node not found", http.StatusNotFound)
			return
		}
		n.State = model.StateName(state)
		w.WriteHeader(http.StatusOK)
	}
}

// addJob must be called with s.mu held.
func (s *Server) addJob(job model.Job) string {
	s.nextId++
	if job.Id == "" {
		job.Id = fmt.Sprintf("job-%04d", s.nextId)
	}
	if job.State == (model.StateValue{}) {
		job.State = model.StateName("Queued")
	}
	if job.SubmitTime == "" {
		job.SubmitTime = model.FlexString(s.now().Format(timeFormat))
	}

	for gi := range job.Groups {
		g := &job.Groups[gi]
		for ti, spec := range g.Tasks {
			task := &model.Task{
				Id:       fmt.Sprintf("%s.%s.%d", job.Id, g.Name, ti),
				JobId:    job.Id,
				TaskSpec: spec,
				State:    model.StateName("Queued"),
			}
			s.tasks[task.Id] = task
		}
	}

	j := job
	s.jobs[job.Id] = &j
	s.jobOrder = append(s.jobOrder, job.Id)
	return job.Id
}

// jobTasks must be called with s.mu held.
func (s *Server) jobTasks(jobId string) []*model.Task {
	var tasks []*model.Task
	for _, t := range s.tasks {
		if t.JobId == jobId {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, k int) bool { return taskLess(tasks[i].Id, tasks[k].Id) })
	return tasks
}

func (s *Server) jobView(j *model.Job, ordinal bool) model.Job {
	view := *j
	view.TotalTasks = model.FlexInt(len(s.jobTasks(j.Id)))
	if ordinal {
		view.State = model.StateOrdinal(indexOf(jobStates, j.State.Name))
	}
	return view
}

// taskLess orders "<job>.<group>.<n>" ids numerically by their last part.
func taskLess(a, b string) bool {
	ai, bi := strings.LastIndex(a, "."), strings.LastIndex(b, ".")
	if ai < 0 || bi < 0 || a[:ai] != b[:bi] {
		return a < b
	}
	an, _ := strconv.Atoi(a[ai+1:])
	bn, _ := strconv.Atoi(b[bi+1:])
	return an < bn
}

func isTerminal(state string) bool {
	switch state {
	case "Completed", "Failed", "Aborted", "Terminated":
		return true
	}
	return false
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return len(names) - 1
}
