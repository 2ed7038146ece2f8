package service

import (
	"context"
	"strings"

	"github.com/doctalk-ai/doctalk/internal/domain"
)

// ChatService ties retrieval, answer composition, and conversation memory
// together behind the chat entry point.
type ChatService struct {
	retrieval *RetrievalService
	composer  *Composer
	history   *HistoryStore
}

func NewChatService(retrieval *RetrievalService, composer *Composer, history *HistoryStore) *ChatService {
	return &ChatService{retrieval: retrieval, composer: composer, history: history}
}

// AskRequest is one chat question. Model optionally pins a provider or asks
// for raw document search; DocumentID narrows retrieval to one document.
type AskRequest struct {
	UserID     string
	Question   string
	Model      string
	DocumentID string
}

// Ask retrieves context for the question and composes an answer. Retrieval
// failures (bad input, embedding errors) return an error; once composition
// starts the result is always a well-formed Answer.
func (s *ChatService) Ask(ctx context.Context, req AskRequest) (*domain.Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.ErrEmptyQuery
	}

	results, err := s.retrieval.Retrieve(ctx, req.UserID, question, RetrieveOptions{
		DocumentID: req.DocumentID,
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]string, len(results))
	for i, r := range results {
		chunks[i] = r.Content
	}

	ans := s.composer.Compose(ctx, ComposeRequest{
		Question: question,
		Chunks:   chunks,
		Model:    req.Model,
		History:  s.history.Recent(req.UserID, maxHistoryTurns),
	})

	// Only real exchanges feed future prompts; degraded answers would teach
	// the model to repeat its own failure text.
	if ans.Status == domain.AnswerStatusSuccess {
		s.history.Append(req.UserID, domain.ChatRoleUser, question)
		s.history.Append(req.UserID, domain.ChatRoleAssistant, ans.Answer)
	}

	return ans, nil
}

// Reset clears a user's conversation memory.
func (s *ChatService) Reset(userID string) {
	s.history.Clear(userID)
}
