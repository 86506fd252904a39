package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/lightsched/lightsched-go/internal/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/propagation"
)

const DefaultTimeout = 100 * time.Second

// Observer is notified after every call with the status code (0 when no
// response was received) and the elapsed time.
type Observer func(operation string, statusCode int, elapsed time.Duration, err error)

type Options struct {
	Timeout    time.Duration
	HTTPClient *http.Client
	Observer   Observer
}

// Client issues JSON requests against one scheduler. The underlying
// transport keeps at most one connection to the server open, so calls made
// through the same Client are carried over a single persistent stream.
// A Client does no locking of its own.
type Client struct {
	baseUrl  *url.URL
	client   *retryablehttp.Client
	observer Observer
}

// Call describes one request/response exchange.
type Call struct {
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Input     interface{}

	// The only status code treated as success.
	Expect int
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func NewClient(baseUrl *url.URL, options Options) *Client {
	client := NewRetryableClient(options.Timeout)
	if options.HTTPClient != nil {
		client.HTTPClient = options.HTTPClient
	}

	return &Client{
		baseUrl:  baseUrl,
		client:   client,
		observer: options.Observer,
	}
}

// NewRetryableClient builds the request executor. Retries are disabled: every
// call is attempted exactly once and any backoff is left to the caller.
func NewRetryableClient(timeout time.Duration) *retryablehttp.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := cleanhttp.DefaultPooledTransport()
	transport.MaxConnsPerHost = 1
	transport.MaxIdleConnsPerHost = 1
	transport.ResponseHeaderTimeout = timeout

	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	client.ErrorHandler = func(resp *http.Response, err error, numTries int) (*http.Response, error) {
		return resp, err
	}
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, err
	}
	client.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: &loggingTransport{transport: transport},
	}

	return client
}

func (c *Client) BaseUrl() *url.URL {
	return c.baseUrl
}

// Do executes the call and returns the fully read response. A status code
// other than call.Expect yields a *StatusError carrying the body.
func (c *Client) Do(ctx context.Context, call Call) (*Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, call)
	if c.observer != nil {
		statusCode := 0
		if resp != nil {
			statusCode = resp.StatusCode
		}
		c.observer(call.Operation, statusCode, time.Since(start), err)
	}
	return resp, err
}

// DoJSON executes the call and decodes the response body into output.
func (c *Client) DoJSON(ctx context.Context, call Call, output interface{}) (*Response, error) {
	resp, err := c.Do(ctx, call)
	if err != nil {
		return resp, err
	}

	if output != nil {
		if err := json.Unmarshal(resp.Body, output); err != nil {
			return resp, &DecodeError{Operation: call.Operation, Err: err}
		}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, call Call) (*Response, error) {
	ctx, id := requestid.WithRequestId(ctx)

	absoluteUri, err := c.resolve(call.Path, call.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader = nil
	if call.Input != nil {
		serializedBody, err := json.Marshal(call.Input)
		if err != nil {
			return nil, fmt.Errorf("unable to serialize payload: %v", err)
		}
		body = bytes.NewBuffer(serializedBody)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, call.Method, absoluteUri, body)
	if err != nil {
		return nil, err
	}

	propagation.Baggage{}.Inject(ctx, propagation.HeaderCarrier(req.Header))
	req.Header.Set(requestid.Header, id)
	if call.Input != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := log.Ctx(ctx)
	dump := zerolog.GlobalLevel() <= zerolog.TraceLevel && logger.GetLevel() <= zerolog.TraceLevel
	if dump {
		if debugOutput, err := httputil.DumpRequestOut(req.Request, true); err == nil {
			logger.Trace().Str("request", string(debugOutput)).Msg("Outgoing request")
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Operation: call.Operation, Err: ctx.Err()}
		}
		return nil, &TransportError{Operation: call.Operation, Err: err}
	}
	defer resp.Body.Close()

	if dump {
		if debugOutput, err := httputil.DumpResponse(resp, true); err == nil {
			logger.Trace().Str("response", string(debugOutput)).Msg("Incoming response")
		}
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Operation: call.Operation, Err: err}
	}

	response := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       content,
	}

	if resp.StatusCode != call.Expect {
		return response, &StatusError{
			Operation:  call.Operation,
			StatusCode: resp.StatusCode,
			Body:       string(content),
		}
	}

	return response, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}

	u := c.baseUrl.ResolveReference(ref)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

type loggingTransport struct {
	transport *http.Transport
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	logger := log.Ctx(req.Context()).With().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Logger()

	logger.Trace().Msg("Sending request")

	resp, err := t.transport.RoundTrip(req)
	if err != nil {
		logger.Trace().Err(err).Msg("Error sending request")
		return nil, err
	}

	logger.Trace().Int("status", resp.StatusCode).Msg("Received response")
	return resp, nil
}
