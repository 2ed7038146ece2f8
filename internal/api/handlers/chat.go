package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/doctalk-ai/doctalk/internal/api"
	"github.com/doctalk-ai/doctalk/internal/api/middleware"
	"github.com/doctalk-ai/doctalk/internal/domain"
	"github.com/doctalk-ai/doctalk/internal/service"
)

type ChatAsker interface {
	Ask(ctx context.Context, req service.AskRequest) (*domain.Answer, error)
	Reset(userID string)
}

type ChatHandler struct {
	svc ChatAsker
}

func NewChatHandler(svc ChatAsker) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Question   string `json:"question"`
	Model      string `json:"model,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

type ChatResponse struct {
	Answer     string   `json:"answer"`
	Sources    []string `json:"sources"`
	HasContext bool     `json:"has_context"`
	Status     string   `json:"status"`
	Provider   string   `json:"provider,omitempty"`
	Model      string   `json:"model,omitempty"`
}

func answerToResponse(a *domain.Answer) *ChatResponse {
	sources := a.Sources
	if sources == nil {
		sources = []string{}
	}
	return &ChatResponse{
		Answer:     a.Answer,
		Sources:    sources,
		HasContext: a.HasContext,
		Status:     string(a.Status),
		Provider:   a.Provider,
		Model:      a.Model,
	}
}

// Ask answers a question against the caller's documents. Degraded outcomes
// (provider down, no credentials) still return 200 with a status field; only
// invalid input or retrieval failure produce an error status code.
func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.svc.Ask(r.Context(), service.AskRequest{
		UserID:     userID,
		Question:   req.Question,
		Model:      req.Model,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, answerToResponse(answer))
}

// Reset clears the caller's conversation memory.
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	h.svc.Reset(userID)
	api.Success(w, http.StatusOK, map[string]string{"status": "reset"})
}
