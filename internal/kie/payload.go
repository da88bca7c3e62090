package kie

import "encoding/json"

// Payload is a ready-to-send task body. GPT4o marks payloads that must go
// through the dedicated gpt4o-image endpoints.
type Payload struct {
	Body  map[string]any
	GPT4o bool
}

// GenerateOptions carries the user-facing knobs for a generation request.
type GenerateOptions struct {
	Prompt       string
	AspectRatio  string
	Resolution   string
	OutputFormat string
	ImageURLs    []string
}

const maxPromptLen = 5000

var gpt4oSizes = map[string]string{
	"1:1": "1:1",
	"3:2": "3:2",
	"2:3": "2:3",
}

// BuildPayload maps a provider model id plus request options onto the body
// that model expects. Each model family has its own quirks: gpt4o-image uses
// a flat body and a separate endpoint, nano-banana switches between create
// and edit variants depending on whether reference images are present, and
// the rest follow the market API shape.
func BuildPayload(model string, opts GenerateOptions) Payload {
	prompt := truncatePrompt(opts.Prompt)
	refs := opts.ImageURLs

	if model == "gpt4o-image" {
		size, ok := gpt4oSizes[opts.AspectRatio]
		if !ok {
			size = "1:1"
		}
		body := map[string]any{
			"prompt":    prompt,
			"size":      size,
			"nVariants": 1,
		}
		if len(refs) > 0 {
			body["filesUrl"] = capURLs(refs, 5)
		}
		return Payload{Body: body, GPT4o: true}
	}

	imageSize := opts.AspectRatio
	if imageSize == "" {
		imageSize = "auto"
	}

	outputFormat := opts.OutputFormat
	if outputFormat == "" {
		outputFormat = "png"
	}

	switch model {
	case "nano-banana-pro":
		input := map[string]any{"prompt": prompt}
		if len(refs) > 0 {
			input["image_input"] = capURLs(refs, 10)
		}
		if opts.AspectRatio != "" {
			input["aspect_ratio"] = opts.AspectRatio
		}
		if opts.Resolution != "" {
			input["resolution"] = opts.Resolution
		}
		input["output_format"] = outputFormat
		return Payload{Body: map[string]any{"model": "nano-banana-pro", "input": input}}

	case "google/nano-banana-edit", "google/nano-banana":
		// Edit requires reference images; without them the create variant
		// handles the request.
		actual := "google/nano-banana"
		input := map[string]any{
			"prompt":        prompt,
			"output_format": "png",
			"image_size":    imageSize,
		}
		if len(refs) > 0 {
			actual = "google/nano-banana-edit"
			input["image_urls"] = capURLs(refs, 10)
			input["mode"] = "edit"
		}
		return Payload{Body: map[string]any{"model": actual, "input": input}}

	default:
		input := map[string]any{
			"prompt":        prompt,
			"image_size":    imageSize,
			"output_format": outputFormat,
		}
		if len(refs) > 0 {
			input["image_urls"] = capURLs(refs, 5)
		}
		return Payload{Body: map[string]any{"model": model, "input": input}}
	}
}

func truncatePrompt(prompt string) string {
	if len(prompt) > maxPromptLen {
		return prompt[:maxPromptLen]
	}
	return prompt
}

func capURLs(urls []string, max int) []string {
	if len(urls) > max {
		return urls[:max]
	}
	return urls
}

// extractResultURL digs the first usable image URL out of a task record.
// The provider answers in several shapes depending on the model: an images
// array, flat url keys, a resultUrls array, or a nested resultJson blob.
func extractResultURL(record map[string]any) string {
	if record == nil {
		return ""
	}

	data, _ := record["data"].(map[string]any)
	if data == nil {
		data = map[string]any{}
	}
	response, _ := data["response"].(map[string]any)
	if response == nil {
		response = data
	}

	if images := firstList(response["images"], data["images"]); len(images) > 0 {
		switch first := images[0].(type) {
		case map[string]any:
			if u := httpString(first["url"]); u != "" {
				return u
			}
			if u := httpString(first["imageUrl"]); u != "" {
				return u
			}
		case string:
			if u := httpString(first); u != "" {
				return u
			}
		}
	}

	for _, key := range []string{"resultUrl", "url", "imageUrl", "resultImageUrl", "image_url", "result_url"} {
		for _, src := range []map[string]any{response, data, record} {
			if u := httpString(src[key]); u != "" {
				return u
			}
		}
	}

	if urls := firstList(response["resultUrls"], data["resultUrls"], record["resultUrls"]); len(urls) > 0 {
		if u, ok := urls[0].(string); ok {
			return httpString(u)
		}
	}

	resultJSON := firstNonNil(response["resultJson"], data["resultJson"])
	switch rj := resultJSON.(type) {
	case string:
		if rj == "" {
			return ""
		}
		var parsed map[string]any
		if err := json.Unmarshal([]byte(rj), &parsed); err != nil {
			return ""
		}
		return extractResultURL(parsed)
	case map[string]any:
		return extractResultURL(rj)
	}

	return ""
}

func httpString(v any) string {
	s, ok := v.(string)
	if !ok || len(s) < 4 || s[:4] != "http" {
		return ""
	}
	return s
}

func firstList(candidates ...any) []any {
	for _, c := range candidates {
		if list, ok := c.([]any); ok && len(list) > 0 {
			return list
		}
	}
	return nil
}

func firstNonNil(candidates ...any) any {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}
