package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/avilagarcia/graphqa"
)

type handler struct {
	orch *graphqa.Orchestrator
}

func newHandler(o *graphqa.Orchestrator) *handler {
	return &handler{orch: o}
}

// POST /questions
func (h *handler) handleQuestion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 4*time.Minute)
	defer cancel()

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.orch.ProcessQuestion(ctx, req.Question)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "question processing failed")
		slog.Error("question error", "error", err, "request_id", requestID(r.Context()))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"answer": answer,
	})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
