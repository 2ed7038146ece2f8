package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	watsonxDefaultURL    = "https://api.us-south.ml.cloud.ibm.com"
	watsonxDefaultModel  = "ibm/granite-3-3-8b-instruct"
	watsonxAPIVersion    = "2023-05-29"
	watsonxIAMEndpoint   = "https://iam.cloud.ibm.com/identity/token"
	watsonxMaxNewTokens  = 512
	watsonxTemperature   = 0.7
	watsonxTopP          = 0.2
	watsonxTopK          = 1
	watsonxTimeout       = 30 * time.Second
	watsonxTokenSkew     = time.Minute
	watsonxTokenLifetime = 55 * time.Minute
)

// WatsonxProvider generates answers through the IBM watsonx.ai text
// generation API. The API is prompt-in/text-out rather than chat-shaped, so
// messages are flattened into a single instruction prompt. IAM access tokens
// are exchanged lazily and cached until close to expiry.
type WatsonxProvider struct {
	apiKey    string
	projectID string
	baseURL   string
	model     string
	iamURL    string
	client    *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewWatsonxProvider(apiKey, projectID, baseURL, model string) *WatsonxProvider {
	if baseURL == "" {
		baseURL = watsonxDefaultURL
	}
	if model == "" {
		model = watsonxDefaultModel
	}
	return &WatsonxProvider{
		apiKey:    apiKey,
		projectID: projectID,
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		iamURL:    watsonxIAMEndpoint,
		client:    &http.Client{Timeout: watsonxTimeout},
	}
}

func (p *WatsonxProvider) Name() string         { return "ibm" }
func (p *WatsonxProvider) DefaultModel() string { return p.model }

type watsonxRequest struct {
	ModelID    string            `json:"model_id"`
	Input      string            `json:"input"`
	ProjectID  string            `json:"project_id"`
	Parameters watsonxParameters `json:"parameters"`
}

type watsonxParameters struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
	TopK         int     `json:"top_k"`
}

type watsonxResponse struct {
	Results []struct {
		GeneratedText string `json:"generated_text"`
	} `json:"results"`
}

func (p *WatsonxProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	token, err := p.token(ctx)
	if err != nil {
		return "", err
	}

	payload := watsonxRequest{
		ModelID:   p.model,
		Input:     flattenPrompt(messages),
		ProjectID: p.projectID,
		Parameters: watsonxParameters{
			MaxNewTokens: watsonxMaxNewTokens,
			Temperature:  watsonxTemperature,
			TopP:         watsonxTopP,
			TopK:         watsonxTopK,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("watsonx: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/ml/v1/text/generation?version=%s", p.baseURL, watsonxAPIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("watsonx: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("watsonx: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("watsonx: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("watsonx: status %d: %s", resp.StatusCode, truncateBody(raw))
	}

	var parsed watsonxResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("watsonx: decode response: %w", err)
	}
	if len(parsed.Results) == 0 {
		return "", fmt.Errorf("watsonx: empty response")
	}

	return strings.TrimSpace(parsed.Results[0].GeneratedText), nil
}

// token returns a cached IAM access token, exchanging the API key when the
// cache is empty or about to expire.
func (p *WatsonxProvider) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.accessToken != "" && time.Now().Before(p.tokenExpiry.Add(-watsonxTokenSkew)) {
		return p.accessToken, nil
	}

	form := url.Values{
		"grant_type": {"urn:ibm:params:oauth:grant-type:apikey"},
		"apikey":     {p.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.iamURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("watsonx: build IAM request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("watsonx: IAM token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("watsonx: read IAM response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("watsonx: IAM status %d: %s", resp.StatusCode, truncateBody(raw))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("watsonx: decode IAM response: %w", err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("watsonx: IAM response missing access token")
	}

	p.accessToken = parsed.AccessToken
	lifetime := watsonxTokenLifetime
	if parsed.ExpiresIn > 0 {
		lifetime = time.Duration(parsed.ExpiresIn) * time.Second
	}
	p.tokenExpiry = time.Now().Add(lifetime)

	return p.accessToken, nil
}

// flattenPrompt renders chat messages as a single instruction prompt for
// prompt-in/text-out models.
func flattenPrompt(messages []Message) string {
	var sb strings.Builder
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			sb.WriteString(m.Content)
			sb.WriteString("\n\n")
		case RoleUser:
			sb.WriteString("Question: ")
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		case RoleAssistant:
			sb.WriteString("Answer: ")
			sb.WriteString(m.Content)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("Answer:")
	return sb.String()
}
