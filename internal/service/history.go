package service

import (
	"sync"

	"github.com/doctalk-ai/doctalk/internal/domain"
)

// HistoryStore keeps per-user chat history in memory. The full conversation
// is retained for the life of the process; callers slice off the recent tail
// when building prompts.
type HistoryStore struct {
	mu    sync.Mutex
	turns map[string][]domain.ChatTurn
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{turns: make(map[string][]domain.ChatTurn)}
}

// Append records an exchange for a user.
func (h *HistoryStore) Append(userID string, role domain.ChatRole, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns[userID] = append(h.turns[userID], domain.ChatTurn{
		Role:    role,
		Content: content,
	})
}

// Recent returns up to the last n turns for a user, oldest first.
func (h *HistoryStore) Recent(userID string, n int) []domain.ChatTurn {
	h.mu.Lock()
	defer h.mu.Unlock()

	all := h.turns[userID]
	if n <= 0 || len(all) <= n {
		return append([]domain.ChatTurn(nil), all...)
	}
	return append([]domain.ChatTurn(nil), all[len(all)-n:]...)
}

// Clear drops a user's conversation.
func (h *HistoryStore) Clear(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turns, userID)
}
