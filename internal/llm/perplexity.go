package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	perplexityEndpoint     = "https://api.perplexity.ai/chat/completions"
	perplexityDefaultModel = "sonar"
	perplexityTemperature  = 0.7
	perplexityMaxTokens    = 512
	perplexityTimeout      = 30 * time.Second
)

// PerplexityProvider generates answers through the Perplexity chat
// completions API, which is OpenAI-shaped but served over plain HTTP here to
// keep the base URL and auth handling explicit.
type PerplexityProvider struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

func NewPerplexityProvider(apiKey, model string) *PerplexityProvider {
	if model == "" {
		model = perplexityDefaultModel
	}
	return &PerplexityProvider{
		apiKey:   apiKey,
		model:    model,
		endpoint: perplexityEndpoint,
		client:   &http.Client{Timeout: perplexityTimeout},
	}
}

func (p *PerplexityProvider) Name() string         { return "perplexity" }
func (p *PerplexityProvider) DefaultModel() string { return p.model }

type perplexityRequest struct {
	Model       string              `json:"model"`
	Messages    []perplexityMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens"`
}

type perplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *PerplexityProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	payload := perplexityRequest{
		Model:       p.model,
		Temperature: perplexityTemperature,
		MaxTokens:   perplexityMaxTokens,
	}
	for _, m := range messages {
		payload.Messages = append(payload.Messages, perplexityMessage{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("perplexity: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("perplexity: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("perplexity: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("perplexity: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("perplexity: status %d: %s", resp.StatusCode, truncateBody(raw))
	}

	var parsed perplexityResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("perplexity: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("perplexity: empty response")
	}

	return parsed.Choices[0].Message.Content, nil
}

func truncateBody(raw []byte) string {
	const max = 200
	if len(raw) > max {
		return string(raw[:max])
	}
	return string(raw)
}
