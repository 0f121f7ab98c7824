// Package client wraps the Cekura test-framework HTTP API.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/mykhaliev/voicebench/logger"
)

const (
	DefaultBaseURL = "https://api.cekura.ai/test_framework/v1"

	// TriggerMaxAttempts is the retry ceiling for run_scenarios. All other
	// operations are single-shot; a missing result is data, not a fault.
	TriggerMaxAttempts = 3

	defaultRetryDelay = 2 * time.Second
	requestTimeout    = 30 * time.Second

	apiKeyHeader    = "X-CEKURA-API-KEY"
	requestIDHeader = "X-Request-ID"
)

// ErrNotFound marks a result (or result list entry) that does not exist
// remotely. It is never retried.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the Cekura API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cekura API returned %d: %s", e.Status, e.Body)
}

// Client talks to the Cekura test-framework API using a static API key.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration
}

type Option func(*Client)

// WithBaseURL overrides the API endpoint. Used by configuration overrides
// and by tests running against httptest servers.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithRetryDelay overrides the pause between run_scenarios attempts.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = delay
	}
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ============================================================================
// API TYPES
// ============================================================================

// ResultRef is one entry of the results listing. Status values observed from
// the API: "pending", "running", "completed", "failed".
type ResultRef struct {
	ID        int           `json:"id"`
	Agent     int           `json:"agent"`
	Name      string        `json:"name"`
	Status    string        `json:"status"`
	Scenarios []ScenarioRef `json:"scenarios"`
}

type ScenarioRef struct {
	ID int `json:"id"`
}

// Result is the full detail of a finished (or in-flight) run. Document keeps
// the raw decoded payload so the metric extractor can walk
// overall_evaluation.metric_summary without this package knowing its shape.
type Result struct {
	ID                 int    `json:"id"`
	Agent              int    `json:"agent"`
	Name               string `json:"name"`
	Status             string `json:"status"`
	CompletedRunsCount int    `json:"completed_runs_count"`
	TotalRunsCount     int    `json:"total_runs_count"`

	Document map[string]interface{} `json:"-"`
}

const StatusCompleted = "completed"

type resultListResponse struct {
	Results []ResultRef `json:"results"`
}

type runScenariosRequest struct {
	AgentID   int    `json:"agent_id"`
	Scenarios []int  `json:"scenarios"`
	Name      string `json:"name,omitempty"`
}

type runScenariosResponse struct {
	ID int `json:"id"`
}

// ============================================================================
// OPERATIONS
// ============================================================================

// RunScenarios triggers a test run and returns the remote result id. Failed
// attempts are retried up to TriggerMaxAttempts with a short delay; the
// caller treats exhaustion as a per-agent failure, not a batch abort.
func (c *Client) RunScenarios(ctx context.Context, agentID int, scenarios []int, runName string) (int, error) {
	if len(scenarios) == 0 {
		return 0, fmt.Errorf("no scenarios provided for agent %d", agentID)
	}

	payload := runScenariosRequest{
		AgentID:   agentID,
		Scenarios: scenarios,
		Name:      runName,
	}

	var lastErr error
	for attempt := 1; attempt <= TriggerMaxAttempts; attempt++ {
		body, err := c.do(ctx, http.MethodPost, c.baseURL+"/scenarios/run_scenarios/", payload)
		if err == nil {
			var resp runScenariosResponse
			if err := sonic.Unmarshal(body, &resp); err != nil {
				return 0, fmt.Errorf("failed to decode run_scenarios response: %w", err)
			}
			logger.Logger.Info("Test run triggered",
				"agent_id", agentID,
				"result_id", resp.ID,
				"run_name", runName)
			return resp.ID, nil
		}

		lastErr = err
		logger.Logger.Warn("Trigger attempt failed",
			"agent_id", agentID,
			"attempt", attempt,
			"max_attempts", TriggerMaxAttempts,
			"error", err)

		if attempt < TriggerMaxAttempts {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}

	return 0, fmt.Errorf("failed to trigger run for agent %d after %d attempts: %w",
		agentID, TriggerMaxAttempts, lastErr)
}

// LatestResult fetches the most recent result reference for an agent. The
// listing is filtered client-side on the agent field because the API filter
// is not reliable. When runName is non-empty, a result with that exact name
// is preferred; otherwise the newest entry wins.
func (c *Client) LatestResult(ctx context.Context, agentID int, runName string) (ResultRef, error) {
	refs, err := c.listResults(ctx, agentID)
	if err != nil {
		return ResultRef{}, err
	}
	if len(refs) == 0 {
		return ResultRef{}, fmt.Errorf("no results for agent %d: %w", agentID, ErrNotFound)
	}

	if runName != "" {
		for _, ref := range refs {
			if ref.Name == runName {
				return ref, nil
			}
		}
		logger.Logger.Warn("No result matching run name, falling back to latest",
			"agent_id", agentID,
			"run_name", runName)
	}

	return refs[0], nil
}

// ResultByID fetches full result detail, including the raw document used for
// metric extraction.
func (c *Client) ResultByID(ctx context.Context, resultID int) (*Result, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/results/%d/", c.baseURL, resultID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch result %d: %w", resultID, err)
	}

	var result Result
	if err := sonic.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode result %d: %w", resultID, err)
	}
	if err := sonic.Unmarshal(body, &result.Document); err != nil {
		return nil, fmt.Errorf("failed to decode result %d document: %w", resultID, err)
	}

	return &result, nil
}

// DiscoverScenarios collects the unique scenario ids across an agent's
// recent result history, sorted ascending. Useful for bootstrapping the
// scenario lists in the agents config.
func (c *Client) DiscoverScenarios(ctx context.Context, agentID int) ([]int, error) {
	refs, err := c.listResults(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("no results for agent %d: %w", agentID, ErrNotFound)
	}

	seen := make(map[int]bool)
	for _, ref := range refs {
		for _, s := range ref.Scenarios {
			seen[s.ID] = true
		}
	}

	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	logger.Logger.Info("Discovered scenarios", "agent_id", agentID, "count", len(ids))
	return ids, nil
}

// WaitForCompletion polls a result until it reaches "completed". A "failed"
// status, the timeout or context cancellation end the wait with an error.
func (c *Client) WaitForCompletion(ctx context.Context, resultID int, timeout, pollInterval time.Duration) (*Result, error) {
	deadline := time.Now().Add(timeout)

	for {
		result, err := c.ResultByID(ctx, resultID)
		if err != nil {
			return nil, err
		}

		logger.Logger.Info("Polling result",
			"result_id", resultID,
			"status", result.Status,
			"completed_runs", result.CompletedRunsCount,
			"total_runs", result.TotalRunsCount)

		switch result.Status {
		case StatusCompleted:
			return result, nil
		case "failed":
			return nil, fmt.Errorf("result %d failed remotely", resultID)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timeout waiting for result %d", resultID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (c *Client) listResults(ctx context.Context, agentID int) ([]ResultRef, error) {
	body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("%s/results/?agent=%d", c.baseURL, agentID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list results for agent %d: %w", agentID, err)
	}

	var resp resultListResponse
	if err := sonic.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode result list: %w", err)
	}

	filtered := make([]ResultRef, 0, len(resp.Results))
	for _, ref := range resp.Results {
		if ref.Agent == agentID {
			filtered = append(filtered, ref)
		}
	}

	return filtered, nil
}

// do issues one request and returns the response body. 404 maps to
// ErrNotFound, other non-2xx statuses to *APIError.
func (c *Client) do(ctx context.Context, method, url string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set(requestIDHeader, uuid.New().String())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s %s: %w", method, url, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}
