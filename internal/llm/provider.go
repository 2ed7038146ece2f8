package llm

import "context"

// Message is one prompt message sent to a provider.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Provider generates an answer from a system prompt, recent chat history,
// and the user's question. Implementations wrap one external LLM service and
// return plain errors; the answer composer converts failures into degraded
// answer objects.
type Provider interface {
	Name() string
	DefaultModel() string
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Config carries the credentials and model overrides for all providers.
type Config struct {
	OpenAIAPIKey string
	OpenAIModel  string

	PerplexityAPIKey string
	PerplexityModel  string

	IBMAPIKey    string
	IBMProjectID string
	IBMURL       string
	IBMModel     string
}
