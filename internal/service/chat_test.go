package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctalk-ai/doctalk/internal/domain"
	"github.com/doctalk-ai/doctalk/internal/vectorindex"
)

func newTestChat(t *testing.T, provider *stubProvider) (*ChatService, vectorindex.Index, Embedder) {
	t.Helper()
	idx, err := vectorindex.NewMemoryIndex(t.TempDir())
	require.NoError(t, err)
	embedder := &hashEmbedder{}

	retrieval := NewRetrievalService(embedder, idx)
	composer := NewComposer(newStubRegistry(provider))
	return NewChatService(retrieval, composer, NewHistoryStore()), idx, embedder
}

func TestAskComposesFromRetrievedChunks(t *testing.T) {
	p := &stubProvider{name: "openai", model: "gpt-3.5-turbo", reply: "cats sleep a lot"}
	svc, idx, embedder := newTestChat(t, p)
	seedIndex(t, idx, embedder, "user-1", "doc-1", []string{
		"cats sleep sixteen hours a day",
		"trains run on fixed schedules",
	})

	ans, err := svc.Ask(context.Background(), AskRequest{
		UserID:   "user-1",
		Question: "how long do cats sleep",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AnswerStatusSuccess, ans.Status)
	assert.True(t, ans.HasContext)
	require.NotEmpty(t, ans.Sources)
	assert.Contains(t, ans.Sources[0], "cats")

	require.Len(t, p.gotCalls, 1)
	assert.Contains(t, p.gotCalls[0][0].Content, "cats sleep sixteen hours")
}

func TestAskAppendsHistoryOnSuccess(t *testing.T) {
	p := &stubProvider{name: "openai", model: "gpt-3.5-turbo", reply: "answer one"}
	svc, _, _ := newTestChat(t, p)

	_, err := svc.Ask(context.Background(), AskRequest{UserID: "user-1", Question: "first question"})
	require.NoError(t, err)

	p.reply = "answer two"
	_, err = svc.Ask(context.Background(), AskRequest{UserID: "user-1", Question: "second question"})
	require.NoError(t, err)

	require.Len(t, p.gotCalls, 2)
	second := p.gotCalls[1]
	// system, prior user turn, prior assistant turn, new question
	require.Len(t, second, 4)
	assert.Equal(t, "first question", second[1].Content)
	assert.Equal(t, "answer one", second[2].Content)
	assert.Equal(t, "second question", second[3].Content)
}

func TestAskFailureDoesNotPolluteHistory(t *testing.T) {
	p := &stubProvider{name: "openai", model: "gpt-3.5-turbo", err: errors.New("down")}
	svc, _, _ := newTestChat(t, p)

	ans, err := svc.Ask(context.Background(), AskRequest{UserID: "user-1", Question: "broken question"})
	require.NoError(t, err)
	assert.Equal(t, domain.AnswerStatusError, ans.Status)

	p.err = nil
	p.reply = "recovered"
	_, err = svc.Ask(context.Background(), AskRequest{UserID: "user-1", Question: "next question"})
	require.NoError(t, err)

	require.Len(t, p.gotCalls, 2)
	// system + question only: the failed exchange left no history.
	assert.Len(t, p.gotCalls[1], 2)
}

func TestAskEmptyQuestion(t *testing.T) {
	svc, _, _ := newTestChat(t, &stubProvider{name: "openai", model: "gpt-3.5-turbo"})

	_, err := svc.Ask(context.Background(), AskRequest{UserID: "user-1", Question: "   "})
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}

func TestResetClearsHistory(t *testing.T) {
	p := &stubProvider{name: "openai", model: "gpt-3.5-turbo", reply: "ok"}
	svc, _, _ := newTestChat(t, p)

	_, err := svc.Ask(context.Background(), AskRequest{UserID: "user-1", Question: "remember me"})
	require.NoError(t, err)

	svc.Reset("user-1")

	_, err = svc.Ask(context.Background(), AskRequest{UserID: "user-1", Question: "fresh start"})
	require.NoError(t, err)

	require.Len(t, p.gotCalls, 2)
	assert.Len(t, p.gotCalls[1], 2)
}

func TestHistoryStoreIsolatesUsers(t *testing.T) {
	h := NewHistoryStore()
	h.Append("user-1", domain.ChatRoleUser, "mine")
	h.Append("user-2", domain.ChatRoleUser, "theirs")

	turns := h.Recent("user-1", 10)
	require.Len(t, turns, 1)
	assert.Equal(t, "mine", turns[0].Content)
}

func TestHistoryStoreRecentTail(t *testing.T) {
	h := NewHistoryStore()
	for i := 0; i < 25; i++ {
		h.Append("user-1", domain.ChatRoleUser, "turn")
	}
	assert.Len(t, h.Recent("user-1", 10), 10)
	assert.Len(t, h.Recent("user-1", 0), 25)
}
