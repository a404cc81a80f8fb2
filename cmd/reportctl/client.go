package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/market-reports/internal/domain"
	"github.com/aristath/market-reports/internal/server"
)

// Client calls the controller's job API
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the controller at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ListJobs returns the controller's pending jobs
func (c *Client) ListJobs(ctx context.Context) ([]domain.JobRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/jobs", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach controller: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("controller returned %s", resp.Status)
	}

	var jobs []domain.JobRecord
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("failed to decode jobs: %w", err)
	}
	return jobs, nil
}

// Schedule submits a deferred run
func (c *Client) Schedule(ctx context.Context, jr domain.JobRequest) (*server.Response, error) {
	return c.post(ctx, "/api/schedule", jr)
}

// Submit runs a report and waits for the result
func (c *Client) Submit(ctx context.Context, jr domain.JobRequest) (*server.Response, error) {
	return c.post(ctx, "/api/submit", jr)
}

func (c *Client) post(ctx context.Context, path string, jr domain.JobRequest) (*server.Response, error) {
	body, err := json.Marshal(jr)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach controller: %w", err)
	}
	defer resp.Body.Close()

	var out server.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response (%s): %w", resp.Status, err)
	}

	if !out.Success {
		if out.Stage != "" {
			return &out, fmt.Errorf("%s (kind=%s, stage=%s)", out.Error, out.Kind, out.Stage)
		}
		return &out, fmt.Errorf("%s (kind=%s)", out.Error, out.Kind)
	}
	return &out, nil
}
