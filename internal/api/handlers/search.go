package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/medra-health/medirag/internal/api"
	"github.com/medra-health/medirag/internal/domain"
	"github.com/medra-health/medirag/internal/service"
)

type RetrievalService interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedChunk, bool, error)
}

type ChatService interface {
	Ask(ctx context.Context, question string, k int) (*service.AskResult, error)
}

type SearchHandler struct {
	retrieval RetrievalService
	chat      ChatService
}

func NewSearchHandler(retrieval RetrievalService, chat ChatService) *SearchHandler {
	return &SearchHandler{retrieval: retrieval, chat: chat}
}

type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

type ChunkResponse struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

type SearchResponse struct {
	Results  []ChunkResponse `json:"results"`
	Degraded bool            `json:"degraded,omitempty"`
}

type AskRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

type AskResponse struct {
	Answer  string          `json:"answer"`
	Sources []ChunkResponse `json:"sources"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	results, degraded, err := h.retrieval.Retrieve(r.Context(), req.Query, req.K)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Results:  toChunkResponses(results),
		Degraded: degraded,
	})
}

func (h *SearchHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Question == "" {
		api.Error(w, http.StatusBadRequest, "question is required")
		return
	}

	result, err := h.chat.Ask(r.Context(), req.Question, req.K)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, AskResponse{
		Answer:  result.Answer,
		Sources: toChunkResponses(result.Sources),
	})
}

func toChunkResponses(chunks []domain.RetrievedChunk) []ChunkResponse {
	out := make([]ChunkResponse, len(chunks))
	for i, c := range chunks {
		out[i] = ChunkResponse{ID: c.ID, Text: c.Text, Score: c.Score}
	}
	return out
}
