package kie

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aitrends/backend/internal/config"
)

// Client talks to the KIE generation API. Submission and status lookup are
// separate single-shot calls; the engine never blocks waiting for a task.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

// TaskState is the provider-side job state collapsed to what the engine
// cares about.
type TaskState string

const (
	TaskPending TaskState = "pending"
	TaskSuccess TaskState = "success"
	TaskFailed  TaskState = "failed"
)

type TaskResult struct {
	TaskID    string
	State     TaskState
	ResultURL string
	FailMsg   string
}

func NewClient(cfg config.Config, log *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		apiKey:  cfg.KIEAPIKey,
		baseURL: strings.TrimRight(cfg.KIEBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// CreateTask submits a generation job and returns the provider task id.
// GPT-4o image jobs use a dedicated endpoint; everything else goes through
// the jobs API.
func (c *Client) CreateTask(ctx context.Context, payload Payload) (string, error) {
	endpoint := "/api/v1/jobs/createTask"
	if payload.GPT4o {
		endpoint = "/api/v1/gpt4o-image/generate"
	}
	fullURL, err := c.resolve(endpoint, nil)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(payload.Body)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post kie: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("KIE create task failed", "status", resp.StatusCode, "url", fullURL, "body", truncateBody(rawBody))
		}
		return "", fmt.Errorf("kie error: status=%d url=%s body=%s", resp.StatusCode, fullURL, truncateBody(rawBody))
	}

	var createResp struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data struct {
			TaskID string `json:"taskId"`
		} `json:"data"`
	}

	if err := json.Unmarshal(rawBody, &createResp); err != nil {
		return "", fmt.Errorf("decode create task response: %w (body=%s)", err, truncateBody(rawBody))
	}

	if createResp.Code != 200 {
		return "", fmt.Errorf("create task failed: code=%d msg=%s", createResp.Code, createResp.Msg)
	}

	if createResp.Data.TaskID == "" {
		return "", fmt.Errorf("empty taskId in response")
	}

	if c.log != nil {
		c.log.Info("KIE task created", "task_id", createResp.Data.TaskID)
	}

	return createResp.Data.TaskID, nil
}

// TaskStatus fetches the current state of a task, once. The caller decides
// when and whether to look again.
func (c *Client) TaskStatus(ctx context.Context, taskID string, gpt4o bool) (*TaskResult, error) {
	endpoint := "/api/v1/jobs/recordInfo"
	if gpt4o {
		endpoint = "/api/v1/gpt4o-image/details"
	}
	params := url.Values{}
	params.Set("taskId", taskID)
	fullURL, err := c.resolve(endpoint, params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get task status: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.Error("KIE task status failed", "status", resp.StatusCode, "url", fullURL, "body", truncateBody(rawBody))
		}
		return nil, fmt.Errorf("kie error: status=%d url=%s body=%s", resp.StatusCode, fullURL, truncateBody(rawBody))
	}

	var statusResp struct {
		Code int            `json:"code"`
		Msg  string         `json:"msg"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rawBody, &statusResp); err != nil {
		return nil, fmt.Errorf("decode status response: %w (body=%s)", err, truncateBody(rawBody))
	}
	if statusResp.Code != 200 {
		return nil, fmt.Errorf("get task status failed: code=%d msg=%s", statusResp.Code, statusResp.Msg)
	}

	result := &TaskResult{TaskID: taskID}
	state, _ := statusResp.Data["state"].(string)
	switch state {
	case "success":
		result.State = TaskSuccess
	case "fail":
		result.State = TaskFailed
		if msg, ok := statusResp.Data["failMsg"].(string); ok && msg != "" {
			result.FailMsg = msg
		} else {
			result.FailMsg = "unknown error"
		}
	case "waiting", "generating", "processing", "queued", "queueing", "":
		result.State = TaskPending
	default:
		return nil, fmt.Errorf("unknown task state: %s", state)
	}

	if result.State == TaskSuccess {
		result.ResultURL = extractResultURL(map[string]any{"data": statusResp.Data})
		if result.ResultURL == "" {
			return nil, fmt.Errorf("success response without result url (task %s)", taskID)
		}
	}
	return result, nil
}

func (c *Client) resolve(endpoint string, params url.Values) (string, error) {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if params != nil {
		ref.RawQuery = params.Encode()
	}
	return base.ResolveReference(ref).String(), nil
}

func truncateBody(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "…"
}
