// Package backend requests generated action plans from the generation backend.
//
// A Client performs exactly one HTTP call per request. Every failure (transport,
// timeout, non-success status, missing envelope text, unrecoverable payload)
// collapses into an absent plan for Generate callers; the reason is only logged
// and recorded.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/envelope"
	"github.com/aretw0/waypoint/pkg/planparse"
)

const (
	// DefaultPath is the action plan pipeline endpoint relative to the base URL.
	DefaultPath = "/generate_action_plan/run"
	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 60 * time.Second
	// DefaultMaxResponseBytes caps how much of a response body is read.
	DefaultMaxResponseBytes int64 = 4 << 20
)

// Outcome stages reported to the Recorder and in logs.
const (
	StageOK        = "ok"
	StageRepaired  = "ok_repaired"
	StageTransport = "transport"
	StageTimeout   = "timeout"
	StageStatus    = "status"
	StageEnvelope  = "envelope"
	StagePayload   = "payload"
)

var (
	// ErrTransport wraps network failures and timeouts.
	ErrTransport = errors.New("backend transport failure")
	// ErrStatus is returned for non-2xx responses.
	ErrStatus = errors.New("backend returned non-success status")
	// ErrResponseTooLarge is returned when the body exceeds the configured limit.
	ErrResponseTooLarge = errors.New("backend response too large")
)

// Recorder observes finished requests. internal/metrics.Metrics implements it.
type Recorder interface {
	ObserveRequest(stage string, d time.Duration)
}

// Client talks to the action plan endpoint. It is safe for concurrent use and
// keeps no state between calls.
type Client struct {
	baseURL    string
	path       string
	httpClient *http.Client
	timeout    time.Duration
	maxBytes   int64
	headers    http.Header
	logger     *slog.Logger
	recorder   Recorder
}

// Option defines a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (transport, proxies, TLS).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the bound applied to each backend call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithPath overrides the endpoint path (default DefaultPath).
func WithPath(path string) Option {
	return func(c *Client) {
		c.path = path
	}
}

// WithHeader adds a header to every request, e.g. a deployment-specific token.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithMaxResponseBytes caps the response body size.
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		c.maxBytes = n
	}
}

// WithLogger sets the structured logger that receives failure diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRecorder sets the request recorder (metrics).
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       DefaultPath,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		maxBytes:   DefaultMaxResponseBytes,
		headers:    make(http.Header),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// Endpoint returns the full URL requests are sent to.
func (c *Client) Endpoint() string {
	if c.path == "" {
		return c.baseURL
	}
	return c.baseURL + "/" + strings.TrimLeft(c.path, "/")
}

// Generate requests an action plan for resources, in the given order.
// The boolean is false when no complete plan could be obtained.
func (c *Client) Generate(ctx context.Context, resources []domain.Resource) (domain.ActionPlan, bool) {
	return c.GenerateRequest(ctx, domain.ActionPlanRequest{Resources: resources})
}

// GenerateRequest is Generate with the full request body.
func (c *Client) GenerateRequest(ctx context.Context, req domain.ActionPlanRequest) (domain.ActionPlan, bool) {
	start := time.Now()
	plan, stage, err := c.fetch(ctx, req)
	elapsed := time.Since(start)

	if c.recorder != nil {
		c.recorder.ObserveRequest(stage, elapsed)
	}

	if err != nil {
		c.logger.Warn("action plan unavailable",
			"stage", stage,
			"error", err,
			"resources", len(req.Resources),
			"duration", elapsed,
		)
		return domain.ActionPlan{}, false
	}

	c.logger.Info("action plan generated",
		"stage", stage,
		"resources", len(req.Resources),
		"duration", elapsed,
	)
	return plan, true
}

// Fetch is the error-returning form of GenerateRequest. Errors wrap ErrTransport,
// ErrStatus, ErrResponseTooLarge, envelope.ErrNotFound or planparse.ErrInvalidPlan.
func (c *Client) Fetch(ctx context.Context, req domain.ActionPlanRequest) (domain.ActionPlan, error) {
	plan, _, err := c.fetch(ctx, req)
	return plan, err
}

func (c *Client) fetch(ctx context.Context, req domain.ActionPlanRequest) (domain.ActionPlan, string, error) {
	if req.Resources == nil {
		req.Resources = []domain.Resource{}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return domain.ActionPlan{}, StageTransport, fmt.Errorf("%w: encode request: %v", ErrTransport, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		return domain.ActionPlan{}, StageTransport, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for key, values := range c.headers {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.ActionPlan{}, transportStage(ctx, err), fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return domain.ActionPlan{}, StageStatus, fmt.Errorf("%w: %s", ErrStatus, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return domain.ActionPlan{}, transportStage(ctx, err), fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if int64(len(body)) > c.maxBytes {
		return domain.ActionPlan{}, StagePayload, fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, c.maxBytes)
	}

	text, err := envelope.Extract(body)
	if err != nil {
		return domain.ActionPlan{}, StageEnvelope, err
	}

	plan, repaired, err := planparse.ParseDetailed(text)
	if err != nil {
		return domain.ActionPlan{}, StagePayload, err
	}
	if repaired {
		return plan, StageRepaired, nil
	}
	return plan, StageOK, nil
}

func transportStage(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return StageTimeout
	}
	return StageTransport
}
