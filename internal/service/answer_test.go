package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctalk-ai/doctalk/internal/domain"
	"github.com/doctalk-ai/doctalk/internal/llm"
)

type stubProvider struct {
	name     string
	model    string
	reply    string
	err      error
	gotCalls [][]llm.Message
}

func (p *stubProvider) Name() string         { return p.name }
func (p *stubProvider) DefaultModel() string { return p.model }

func (p *stubProvider) Generate(_ context.Context, messages []llm.Message) (string, error) {
	p.gotCalls = append(p.gotCalls, messages)
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

type stubRegistry struct {
	providers map[string]llm.Provider
	byDefault llm.Provider
}

func newStubRegistry(def *stubProvider, others ...*stubProvider) *stubRegistry {
	r := &stubRegistry{providers: make(map[string]llm.Provider)}
	if def != nil {
		r.byDefault = def
		r.providers[def.name] = def
	}
	for _, p := range others {
		r.providers[p.name] = p
	}
	return r
}

func (r *stubRegistry) Default() llm.Provider        { return r.byDefault }
func (r *stubRegistry) Get(name string) llm.Provider { return r.providers[name] }
func (r *stubRegistry) Empty() bool                  { return len(r.providers) == 0 }

func TestComposeSuccess(t *testing.T) {
	p := &stubProvider{name: "openai", model: "gpt-3.5-turbo", reply: "Paris."}
	c := NewComposer(newStubRegistry(p))

	chunks := []string{"chunk one", "chunk two", "chunk three", "chunk four"}
	ans := c.Compose(context.Background(), ComposeRequest{
		Question: "What is the capital of France?",
		Chunks:   chunks,
	})

	assert.Equal(t, domain.AnswerStatusSuccess, ans.Status)
	assert.Equal(t, "Paris.", ans.Answer)
	assert.Equal(t, "openai", ans.Provider)
	assert.Equal(t, "gpt-3.5-turbo", ans.Model)
	assert.True(t, ans.HasContext)
	assert.Equal(t, chunks[:3], ans.Sources)

	require.Len(t, p.gotCalls, 1)
	messages := p.gotCalls[0]
	require.GreaterOrEqual(t, len(messages), 2)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Contains(t, messages[0].Content, "Use the provided context")
	assert.Contains(t, messages[0].Content, "chunk one\n\n---\n\nchunk two")
	assert.Equal(t, llm.RoleUser, messages[len(messages)-1].Role)
	assert.Equal(t, "What is the capital of France?", messages[len(messages)-1].Content)
}

func TestComposeHistoryTail(t *testing.T) {
	p := &stubProvider{name: "openai", model: "gpt-3.5-turbo", reply: "ok"}
	c := NewComposer(newStubRegistry(p))

	var history []domain.ChatTurn
	for i := 0; i < 14; i++ {
		history = append(history, domain.ChatTurn{
			Role:    domain.ChatRoleUser,
			Content: fmt.Sprintf("turn %d", i),
		})
	}

	c.Compose(context.Background(), ComposeRequest{
		Question: "q",
		History:  history,
	})

	require.Len(t, p.gotCalls, 1)
	messages := p.gotCalls[0]
	// system + 10 history turns + question
	require.Len(t, messages, 12)
	assert.Equal(t, "turn 4", messages[1].Content)
	assert.Equal(t, "turn 13", messages[10].Content)
}

func TestComposeModelHintRoutesProvider(t *testing.T) {
	def := &stubProvider{name: "perplexity", model: "sonar", reply: "from perplexity"}
	alt := &stubProvider{name: "openai", model: "gpt-3.5-turbo", reply: "from openai"}
	c := NewComposer(newStubRegistry(def, alt))

	ans := c.Compose(context.Background(), ComposeRequest{
		Question: "q",
		Model:    "gpt-4o",
	})

	assert.Equal(t, domain.AnswerStatusSuccess, ans.Status)
	assert.Equal(t, "from openai", ans.Answer)
	assert.Equal(t, "openai", ans.Provider)
	assert.Equal(t, "gpt-4o", ans.Model)
	assert.Empty(t, def.gotCalls)
}

func TestComposeHintForUnconfiguredProvider(t *testing.T) {
	def := &stubProvider{name: "openai", model: "gpt-3.5-turbo", reply: "unused"}
	c := NewComposer(newStubRegistry(def))

	ans := c.Compose(context.Background(), ComposeRequest{
		Question: "q",
		Model:    "ibm/granite-3-3-8b-instruct",
		Chunks:   []string{"top chunk content"},
	})

	assert.Equal(t, domain.AnswerStatusError, ans.Status)
	assert.Equal(t, "ibm", ans.Provider)
	assert.Contains(t, ans.Answer, "not configured")
	assert.Contains(t, ans.Answer, "top chunk content")
	assert.Empty(t, def.gotCalls)
}

func TestComposeProviderFailure(t *testing.T) {
	p := &stubProvider{name: "openai", model: "gpt-3.5-turbo", err: errors.New("rate limited")}
	c := NewComposer(newStubRegistry(p))

	long := strings.Repeat("a", 600)
	ans := c.Compose(context.Background(), ComposeRequest{
		Question: "q",
		Chunks:   []string{long},
	})

	assert.Equal(t, domain.AnswerStatusError, ans.Status)
	assert.Contains(t, ans.Answer, "Unable to use openai")
	assert.Contains(t, ans.Answer, "rate limited")
	assert.Contains(t, ans.Answer, "Here's the relevant document content:")
	assert.Contains(t, ans.Answer, strings.Repeat("a", 500)+"...")
	assert.NotContains(t, ans.Answer, strings.Repeat("a", 501))
}

func TestComposeProviderFailureNoContext(t *testing.T) {
	p := &stubProvider{name: "openai", model: "gpt-3.5-turbo", err: errors.New("down")}
	c := NewComposer(newStubRegistry(p))

	ans := c.Compose(context.Background(), ComposeRequest{Question: "q"})

	assert.Equal(t, domain.AnswerStatusError, ans.Status)
	assert.False(t, ans.HasContext)
	assert.NotContains(t, ans.Answer, "Here's the relevant document content:")
}

func TestComposeFallbackNoProviders(t *testing.T) {
	c := NewComposer(newStubRegistry(nil))

	ans := c.Compose(context.Background(), ComposeRequest{
		Question: "q",
		Chunks:   []string{"first", "second"},
	})
	assert.Equal(t, domain.AnswerStatusFallback, ans.Status)
	assert.Contains(t, ans.Answer, "No LLM configured. Context from documents:")
	assert.Contains(t, ans.Answer, "first\n\n---\n\nsecond")

	ans = c.Compose(context.Background(), ComposeRequest{Question: "q"})
	assert.Equal(t, domain.AnswerStatusFallback, ans.Status)
	assert.Equal(t, "No documents found.", ans.Answer)
	assert.False(t, ans.HasContext)
}

func TestComposeFallbackEchoesModelHint(t *testing.T) {
	c := NewComposer(newStubRegistry(nil))

	ans := c.Compose(context.Background(), ComposeRequest{
		Question: "q",
		Model:    "gpt-4o",
		Chunks:   []string{"first"},
	})
	assert.Equal(t, domain.AnswerStatusFallback, ans.Status)
	assert.Equal(t, "gpt-4o", ans.Model)

	ans = c.Compose(context.Background(), ComposeRequest{Question: "q"})
	assert.Empty(t, ans.Model)
}

func TestComposeDocumentSearch(t *testing.T) {
	// document-search answers come straight from the index, even when a
	// provider is configured.
	p := &stubProvider{name: "openai", model: "gpt-3.5-turbo", reply: "unused"}
	c := NewComposer(newStubRegistry(p))

	ans := c.Compose(context.Background(), ComposeRequest{
		Question: "q",
		Model:    "document-search",
		Chunks:   []string{"the best matching chunk", "another"},
	})
	assert.Equal(t, domain.AnswerStatusDocumentSearch, ans.Status)
	assert.Equal(t, "Document content:\n\nthe best matching chunk", ans.Answer)
	assert.Empty(t, p.gotCalls)

	ans = c.Compose(context.Background(), ComposeRequest{
		Question: "q",
		Model:    "document-search",
	})
	assert.Equal(t, "No documents found.", ans.Answer)
}
