package domain

// ChatRole is the speaker of a chat turn.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatTurn is one in-memory conversational exchange. Turns are never persisted;
// they only give the LLM provider short-term context.
type ChatTurn struct {
	Role    ChatRole
	Content string
}

// AnswerStatus describes how an answer was produced.
type AnswerStatus string

const (
	AnswerStatusSuccess        AnswerStatus = "success"
	AnswerStatusError          AnswerStatus = "error"
	AnswerStatusFallback       AnswerStatus = "fallback"
	AnswerStatusDocumentSearch AnswerStatus = "document-search"
)

// Answer is the normalized result shape every provider outcome collapses into.
// Chat entry points always return a well-formed Answer, never a bare error.
type Answer struct {
	Answer     string
	Sources    []string
	HasContext bool
	Status     AnswerStatus
	Provider   string
	Model      string
}
