package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doctalk-ai/doctalk/internal/domain"
	"github.com/doctalk-ai/doctalk/internal/llm"
)

const (
	systemPromptTemplate = "You are a helpful assistant. Use the provided context to answer questions. If the answer is not in the context, say so clearly.\n\nContext:\n%s"
	contextSeparator     = "\n\n---\n\n"
	noDocumentsAnswer    = "No documents found."

	maxHistoryTurns = 10
	maxSources      = 3
	excerptRunes    = 500
	generateTimeout = 30 * time.Second
)

// providerRegistry is the slice of the provider registry the composer needs.
type providerRegistry interface {
	Default() llm.Provider
	Get(name string) llm.Provider
	Empty() bool
}

// Composer turns retrieved chunks plus a question into an Answer. Every
// outcome, including provider failures and missing credentials, collapses
// into a well-formed Answer with a status; Compose never returns an error.
type Composer struct {
	registry providerRegistry
}

func NewComposer(registry providerRegistry) *Composer {
	return &Composer{registry: registry}
}

// ComposeRequest carries everything the composer needs for one answer.
// Chunks are ranked best-first. Model optionally pins a provider; History is
// the full prior conversation, of which only the recent tail is sent.
type ComposeRequest struct {
	Question string
	Chunks   []string
	Model    string
	History  []domain.ChatTurn
}

func (c *Composer) Compose(ctx context.Context, req ComposeRequest) *domain.Answer {
	contextText := strings.Join(req.Chunks, contextSeparator)
	ans := &domain.Answer{
		Sources:    sourcesFrom(req.Chunks),
		HasContext: len(req.Chunks) > 0,
	}

	name := llm.NameForModel(req.Model)

	if name == llm.DocumentSearchModel {
		ans.Status = domain.AnswerStatusDocumentSearch
		ans.Provider = llm.DocumentSearchModel
		ans.Model = llm.DocumentSearchModel
		if len(req.Chunks) == 0 {
			ans.Answer = noDocumentsAnswer
		} else {
			ans.Answer = "Document content:\n\n" + excerpt(req.Chunks[0])
		}
		return ans
	}

	if c.registry.Empty() {
		ans.Status = domain.AnswerStatusFallback
		ans.Model = req.Model
		if ans.HasContext {
			ans.Answer = "No LLM configured. Context from documents:\n" + contextText
		} else {
			ans.Answer = noDocumentsAnswer
		}
		return ans
	}

	provider := c.registry.Default()
	if name != "" {
		provider = c.registry.Get(name)
		if provider == nil {
			ans.Status = domain.AnswerStatusError
			ans.Provider = name
			ans.Model = req.Model
			ans.Answer = errorAnswer(fmt.Sprintf("Provider %s is not configured.", name), req.Chunks)
			return ans
		}
	}

	ans.Provider = provider.Name()
	ans.Model = req.Model
	if ans.Model == "" {
		ans.Model = provider.DefaultModel()
	}

	messages := buildMessages(contextText, req.History, req.Question)

	genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	text, err := provider.Generate(genCtx, messages)
	if err != nil {
		ans.Status = domain.AnswerStatusError
		ans.Answer = errorAnswer(fmt.Sprintf("Unable to use %s. Error: %v", provider.Name(), err), req.Chunks)
		return ans
	}

	ans.Status = domain.AnswerStatusSuccess
	ans.Answer = text
	return ans
}

// buildMessages assembles the prompt: context-bearing system message, the
// recent history tail, then the question.
func buildMessages(contextText string, history []domain.ChatTurn, question string) []llm.Message {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: fmt.Sprintf(systemPromptTemplate, contextText)},
	}

	recent := history
	if len(recent) > maxHistoryTurns {
		recent = recent[len(recent)-maxHistoryTurns:]
	}
	for _, turn := range recent {
		messages = append(messages, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}

	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})
	return messages
}

func sourcesFrom(chunks []string) []string {
	n := len(chunks)
	if n > maxSources {
		n = maxSources
	}
	if n == 0 {
		return nil
	}
	return append([]string(nil), chunks[:n]...)
}

// errorAnswer pairs a failure message with the best-matching document excerpt
// so a degraded answer still surfaces something useful.
func errorAnswer(msg string, chunks []string) string {
	if len(chunks) == 0 {
		return msg
	}
	return msg + "\n\nHere's the relevant document content:\n" + excerpt(chunks[0])
}

func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= excerptRunes {
		return s
	}
	return string(runes[:excerptRunes]) + "..."
}
