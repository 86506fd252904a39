package lightsched

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// DefaultPort is the scheduler's REST port.
const DefaultPort = 20516

type options struct {
	timeout    time.Duration
	httpClient *http.Client
	registerer prometheus.Registerer
	logger     *zerolog.Logger
}

// Option configures a ComputingCluster.
type Option func(*options)

// WithTimeout bounds every request, including the discovery call.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithHTTPClient replaces the single-connection client. The caller then owns
// the connection policy.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithMetrics registers request counters and latency histograms.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithLogger sets the logger used when a call's context carries none.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// OfflineOption configures OfflineNode.
type OfflineOption func(*offlineOptions)

type offlineOptions struct {
	kill bool
}

// WithKillTasks asks the scheduler to abort the tasks running on the node
// instead of letting them finish.
func WithKillTasks() OfflineOption {
	return func(o *offlineOptions) {
		o.kill = true
	}
}

// SortOrder selects the ordering of QueryJobList results.
type SortOrder int

const (
	SortDefault SortOrder = iota
	SortBySubmit
	SortByState
)

func (s SortOrder) queryValue() string {
	switch s {
	case SortBySubmit:
		return "submit"
	case SortByState:
		return "state"
	}
	return ""
}

// JobFilter restricts and pages QueryJobList. Offset and Limit are only
// sent when positive; a nil State lists jobs in every state.
type JobFilter struct {
	State  *JobState
	Offset int
	Limit  int
	Sort   SortOrder
}
