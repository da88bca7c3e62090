package kie

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aitrends/backend/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.Config{KIEAPIKey: "test-key", KIEBaseURL: srv.URL}, nil)
}

func TestCreateTask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/jobs/createTask" {
			t.Errorf("path = %s, want /api/v1/jobs/createTask", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body["model"] != "google/nano-banana" {
			t.Errorf("model = %v", body["model"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"taskId": "task-123"},
		})
	})

	payload := BuildPayload("google/nano-banana", GenerateOptions{Prompt: "a dog"})
	taskID, err := client.CreateTask(context.Background(), payload)
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if taskID != "task-123" {
		t.Errorf("taskID = %q, want task-123", taskID)
	}
}

func TestCreateTaskUsesGPT4oEndpoint(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/gpt4o-image/generate" {
			t.Errorf("path = %s, want /api/v1/gpt4o-image/generate", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"code": 200,
			"data": map[string]any{"taskId": "task-4o"},
		})
	})

	payload := BuildPayload("gpt4o-image", GenerateOptions{Prompt: "a dog"})
	if _, err := client.CreateTask(context.Background(), payload); err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
}

func TestCreateTaskProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"code": 402, "msg": "insufficient quota"})
	})

	payload := BuildPayload("google/nano-banana", GenerateOptions{Prompt: "x"})
	if _, err := client.CreateTask(context.Background(), payload); err == nil {
		t.Fatal("expected error on provider code != 200")
	}
}

func TestTaskStatus(t *testing.T) {
	tests := []struct {
		name      string
		data      map[string]any
		wantState TaskState
		wantURL   string
		wantErr   bool
	}{
		{
			name:      "success with result urls",
			data:      map[string]any{"state": "success", "resultUrls": []any{"https://cdn/out.png"}},
			wantState: TaskSuccess,
			wantURL:   "https://cdn/out.png",
		},
		{
			name:      "failure carries message",
			data:      map[string]any{"state": "fail", "failMsg": "nsfw"},
			wantState: TaskFailed,
		},
		{
			name:      "generating maps to pending",
			data:      map[string]any{"state": "generating"},
			wantState: TaskPending,
		},
		{
			name:    "unknown state rejected",
			data:    map[string]any{"state": "exploded"},
			wantErr: true,
		},
		{
			name:    "success without url rejected",
			data:    map[string]any{"state": "success"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/jobs/recordInfo" {
					t.Errorf("path = %s, want /api/v1/jobs/recordInfo", r.URL.Path)
				}
				if got := r.URL.Query().Get("taskId"); got != "task-9" {
					t.Errorf("taskId = %q, want task-9", got)
				}
				json.NewEncoder(w).Encode(map[string]any{"code": 200, "data": tt.data})
			})

			result, err := client.TaskStatus(context.Background(), "task-9", false)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("TaskStatus: %v", err)
			}
			if result.State != tt.wantState {
				t.Errorf("state = %s, want %s", result.State, tt.wantState)
			}
			if result.ResultURL != tt.wantURL {
				t.Errorf("result url = %q, want %q", result.ResultURL, tt.wantURL)
			}
		})
	}
}

func TestTaskStatusGPT4oEndpoint(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/gpt4o-image/details" {
			t.Errorf("path = %s, want /api/v1/gpt4o-image/details", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"code": 200, "data": map[string]any{"state": "waiting"}})
	})

	result, err := client.TaskStatus(context.Background(), "task-4o", true)
	if err != nil {
		t.Fatalf("TaskStatus: %v", err)
	}
	if result.State != TaskPending {
		t.Errorf("state = %s, want pending", result.State)
	}
}
