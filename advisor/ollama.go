package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// OllamaAdvisor consults a locally hosted language model through the Ollama
// HTTP API. The model is instructed to emit the response schema as JSON;
// anything that fails to parse is a content fault, not a transport fault.
type OllamaAdvisor struct {
	client *resty.Client
	model  string
}

func NewOllamaAdvisor(baseURL, model string, timeout time.Duration) *OllamaAdvisor {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)

	return &OllamaAdvisor{client: client, model: model}
}

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Format  string         `json:"format"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

func (o *OllamaAdvisor) Advise(ctx context.Context, req Request) (Response, error) {
	// Marshal through the fixed-order Request struct so identical inputs
	// produce an identical prompt.
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	prompt := fmt.Sprintf(
		"You are a disciplined intraday equity analyst. Given this market data:\n%s\n"+
			"Reply with JSON only: {\"direction\":\"long|short|none\",\"entry\":0,"+
			"\"stop\":0,\"target\":0,\"confidence\":0,\"rationale\":\"\"}. "+
			"Be selective: direction \"none\" unless the setup has clear risk/reward.",
		payload)

	var out ollamaGenerateResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(ollamaGenerateRequest{
			Model:  o.model,
			Prompt: prompt,
			Format: "json",
			Stream: false,
			Options: map[string]any{
				"temperature": 0.2,
				"num_predict": 300,
			},
		}).
		SetResult(&out).
		Post("/api/generate")
	if err != nil {
		return Response{}, fmt.Errorf("ollama generate: %w", err)
	}
	if resp.StatusCode() != 200 {
		return Response{}, fmt.Errorf("ollama generate: status %d", resp.StatusCode())
	}

	var parsed Response
	if err := json.Unmarshal([]byte(out.Response), &parsed); err != nil {
		// The transport worked; the model produced garbage. Content fault.
		return Response{}, fmt.Errorf("%w: unparseable model output: %v", ErrAdvisoryRejected, err)
	}
	return parsed, nil
}
