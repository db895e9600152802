// Package convert is a client for the Convert.com REST API (v2).
//
// Every request is signed with the application secret (see package signer)
// and executed through Client.Do, which collapses the many response shapes
// the API produces into data, an empty success, or a typed error.
package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/campaigntrip/convertapi/internal/logging"
	"github.com/campaigntrip/convertapi/internal/metrics"
	"github.com/campaigntrip/convertapi/internal/retry"
	"github.com/campaigntrip/convertapi/internal/signer"
	"github.com/campaigntrip/convertapi/internal/traces"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.convert.com/api/v2"

var (
	// ErrTransport wraps network failures: dial, timeout, read.
	ErrTransport = errors.New("convert: transport failure")

	// ErrUnsupportedMethod is returned for anything but GET and POST.
	ErrUnsupportedMethod = errors.New("convert: unsupported HTTP method")

	// ErrUnexpectedResponse is returned for JSON responses the client
	// does not know how to interpret.
	ErrUnexpectedResponse = errors.New("convert: unexpected response")

	// ErrNoData is returned by operations that need a body when the API
	// answered 204 No Content.
	ErrNoData = errors.New("convert: response carried no data")
)

// APIError is a non-success answer from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// Retryable reports whether the failure is worth another attempt.
func (e *APIError) Retryable() bool {
	return e.Status >= 500
}

// Config holds what the client needs to reach and authenticate to the API.
type Config struct {
	BaseURL       string // e.g. "https://api.convert.com/api/v2"
	ApplicationID string
	Secret        string
	Timeout       time.Duration
	Retry         retry.Policy

	// Verbose > 0 logs the canonical sign string, > 1 also logs response
	// bodies. Both go to the debug level.
	Verbose int

	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// Client talks to the Convert API. It is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a client. Zero fields in cfg take defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.Once
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		now:        now,
	}
}

// BaseURL returns the API root requests are built against.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// Request is one API call as seen by the executor.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Params  url.Values
	Body    string

	// Unwrap returns the "data" member of the JSON envelope instead of the
	// whole document.
	Unwrap bool
}

// Response is a successful API answer.
type Response struct {
	Status int
	Data   json.RawMessage
}

// Empty reports whether the API answered 204 No Content.
func (r *Response) Empty() bool {
	return r == nil || r.Data == nil
}

// Do executes req exactly once. It does not sign; callers put the
// authentication headers in req.Headers.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method != http.MethodGet && req.Method != http.MethodPost {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for k, vs := range req.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader = http.NoBody
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	logger := logging.LOr(ctx, c.logger)
	logger.Debug("making request", "method", req.Method, "url", u.String())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	logger.Debug("response received", "status", resp.StatusCode, "bytes", len(respBody))
	if c.cfg.Verbose > 1 {
		logger.Debug("response body", "body", prettyBody(respBody))
	}

	return interpret(resp.StatusCode, resp.Header.Get("Content-Type"), respBody, req.Unwrap)
}

// interpret turns a raw HTTP answer into the executor's result.
func interpret(status int, contentType string, body []byte, unwrap bool) (*Response, error) {
	if status == http.StatusNoContent {
		return &Response{Status: status}, nil
	}

	isJSON := strings.HasPrefix(strings.TrimSpace(contentType), "application/json") && json.Valid(body)

	switch {
	case isJSON && status >= 200 && status <= 202:
		if !unwrap {
			if isNull(body) {
				return nil, fmt.Errorf("%w: null %d response", ErrUnexpectedResponse, status)
			}
			return &Response{Status: status, Data: json.RawMessage(body)}, nil
		}
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &env); err != nil || isNull(env.Data) {
			return nil, fmt.Errorf("%w: no data member in %d response", ErrUnexpectedResponse, status)
		}
		return &Response{Status: status, Data: env.Data}, nil

	case isJSON && status >= 400:
		var apiErr struct {
			IsError bool   `json:"isError"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.IsError {
			return nil, &APIError{Status: status, Message: apiErr.Message}
		}
		return nil, &APIError{Status: status, Message: string(body)}

	case isJSON && status >= 200 && status < 300:
		return nil, fmt.Errorf("%w: status %d", ErrUnexpectedResponse, status)

	case strings.HasPrefix(strings.TrimSpace(contentType), "application/json") && status < 300:
		return nil, fmt.Errorf("%w: invalid JSON in %d response", ErrUnexpectedResponse, status)
	}

	return nil, &APIError{Status: status, Message: "unknown response: " + string(body)}
}

// isNull reports whether raw is absent or the JSON literal null.
func isNull(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

// call signs and executes one API operation under the client's retry
// policy, recording metrics, a trace span and debug logs.
func (c *Client) call(ctx context.Context, op string, req Request, attrs ...attribute.KeyValue) (resp *Response, err error) {
	requestID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, requestID)
	ctx = logging.WithLogger(ctx, c.logger.With("operation", op))
	logger := logging.L(ctx)

	ctx, span := traces.StartSpan(ctx, "convert."+op, append(attrs, traces.Method(req.Method))...)
	done := metrics.ObserveAPI(op)
	defer func() {
		done(resultOf(resp, err))
		traces.End(span, err)
	}()

	err = retry.Do(ctx, c.cfg.Retry, func(attempt int) error {
		span.SetAttributes(traces.Attempt(attempt))
		if attempt > 1 {
			metrics.APIRetriesTotal.WithLabelValues(op).Inc()
			logger.Debug("retrying request", "attempt", attempt)
		}

		now := c.now()
		if c.cfg.Verbose > 0 {
			logger.Debug("signing request",
				"message", signer.Message(c.cfg.ApplicationID, signer.Expires(now), req.URL, req.Body))
		}

		signed := req
		signed.Headers = make(map[string]string, len(req.Headers)+3)
		for k, v := range req.Headers {
			signed.Headers[k] = v
		}
		for k, v := range signer.Headers(c.cfg.ApplicationID, c.cfg.Secret, req.URL, req.Body, now) {
			signed.Headers[k] = v
		}

		r, doErr := c.Do(ctx, signed)
		if doErr != nil {
			var apiErr *APIError
			if errors.As(doErr, &apiErr) {
				span.SetAttributes(traces.StatusCode(apiErr.Status))
			}
			return classify(doErr)
		}
		span.SetAttributes(traces.StatusCode(r.Status))
		resp = r
		return nil
	})
	if err != nil {
		logger.Debug("request failed", "error", err)
		return nil, err
	}
	return resp, nil
}

// classify marks failures that must not be retried.
func classify(err error) error {
	var apiErr *APIError
	switch {
	case errors.Is(err, ErrTransport):
		return err
	case errors.As(err, &apiErr) && apiErr.Retryable():
		return err
	default:
		return retry.Permanent(err)
	}
}

func resultOf(resp *Response, err error) string {
	var apiErr *APIError
	switch {
	case err == nil && resp.Empty():
		return metrics.ResultEmpty
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrTransport):
		return metrics.ResultTransportError
	case errors.As(err, &apiErr):
		return metrics.ResultAPIError
	default:
		return metrics.ResultUnexpected
	}
}

func prettyBody(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}
