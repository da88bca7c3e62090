package kie

import (
	"strings"
	"testing"
)

func TestBuildPayloadGPT4o(t *testing.T) {
	p := BuildPayload("gpt4o-image", GenerateOptions{
		Prompt:      "a cat",
		AspectRatio: "3:2",
		ImageURLs:   []string{"https://a", "https://b", "https://c", "https://d", "https://e", "https://f"},
	})
	if !p.GPT4o {
		t.Fatal("expected GPT4o payload")
	}
	if p.Body["size"] != "3:2" {
		t.Errorf("size = %v, want 3:2", p.Body["size"])
	}
	files, ok := p.Body["filesUrl"].([]string)
	if !ok || len(files) != 5 {
		t.Errorf("filesUrl = %v, want 5 urls", p.Body["filesUrl"])
	}
}

func TestBuildPayloadGPT4oUnknownRatio(t *testing.T) {
	p := BuildPayload("gpt4o-image", GenerateOptions{Prompt: "x", AspectRatio: "21:9"})
	if p.Body["size"] != "1:1" {
		t.Errorf("size = %v, want fallback 1:1", p.Body["size"])
	}
}

func TestBuildPayloadNanoBananaSwitchesOnReferences(t *testing.T) {
	create := BuildPayload("google/nano-banana-edit", GenerateOptions{Prompt: "draw"})
	if create.Body["model"] != "google/nano-banana" {
		t.Errorf("model without refs = %v, want google/nano-banana", create.Body["model"])
	}

	edit := BuildPayload("google/nano-banana-edit", GenerateOptions{
		Prompt:    "restyle",
		ImageURLs: []string{"https://img/1.png"},
	})
	if edit.Body["model"] != "google/nano-banana-edit" {
		t.Errorf("model with refs = %v, want google/nano-banana-edit", edit.Body["model"])
	}
	input := edit.Body["input"].(map[string]any)
	if input["mode"] != "edit" {
		t.Errorf("mode = %v, want edit", input["mode"])
	}
	if input["output_format"] != "png" {
		t.Errorf("output_format = %v, want png", input["output_format"])
	}
}

func TestBuildPayloadDefaultShape(t *testing.T) {
	p := BuildPayload("bytedance/seedream-v4-text-to-image", GenerateOptions{
		Prompt:       "sunset",
		AspectRatio:  "16:9",
		OutputFormat: "jpeg",
	})
	if p.GPT4o {
		t.Fatal("unexpected GPT4o flag")
	}
	input := p.Body["input"].(map[string]any)
	if input["image_size"] != "16:9" {
		t.Errorf("image_size = %v, want 16:9", input["image_size"])
	}
	if input["output_format"] != "jpeg" {
		t.Errorf("output_format = %v, want jpeg", input["output_format"])
	}
	if _, ok := input["image_urls"]; ok {
		t.Error("image_urls should be absent without references")
	}
}

func TestBuildPayloadTruncatesPrompt(t *testing.T) {
	long := strings.Repeat("p", maxPromptLen+100)
	p := BuildPayload("google/nano-banana", GenerateOptions{Prompt: long})
	input := p.Body["input"].(map[string]any)
	if got := input["prompt"].(string); len(got) != maxPromptLen {
		t.Errorf("prompt length = %d, want %d", len(got), maxPromptLen)
	}
}

func TestExtractResultURL(t *testing.T) {
	tests := []struct {
		name   string
		record map[string]any
		want   string
	}{
		{
			name: "resultUrls array",
			record: map[string]any{"data": map[string]any{
				"resultUrls": []any{"https://cdn/one.png", "https://cdn/two.png"},
			}},
			want: "https://cdn/one.png",
		},
		{
			name: "images array of objects",
			record: map[string]any{"data": map[string]any{
				"images": []any{map[string]any{"url": "https://cdn/img.png"}},
			}},
			want: "https://cdn/img.png",
		},
		{
			name: "flat key in response",
			record: map[string]any{"data": map[string]any{
				"response": map[string]any{"resultUrl": "https://cdn/flat.png"},
			}},
			want: "https://cdn/flat.png",
		},
		{
			name: "nested resultJson string",
			record: map[string]any{"data": map[string]any{
				"resultJson": `{"data":{"resultUrls":["https://cdn/nested.png"]}}`,
			}},
			want: "https://cdn/nested.png",
		},
		{
			name:   "non-http values ignored",
			record: map[string]any{"data": map[string]any{"resultUrl": "file:///tmp/x"}},
			want:   "",
		},
		{
			name:   "empty record",
			record: map[string]any{},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractResultURL(tt.record); got != tt.want {
				t.Errorf("extractResultURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
