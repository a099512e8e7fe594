package api

import (
	"encoding/json"
	"net/http"

	"github.com/ashureev/deskagent/internal/executor"
	"github.com/go-chi/chi/v5"
)

// ExecutorHandler exposes the execution boundary directly, bypassing the
// planner. Useful for debugging a desktop and for clients that already
// speak xdotool.
type ExecutorHandler struct {
	exec executor.Executor
}

// NewExecutorHandler creates an executor handler.
func NewExecutorHandler(exec executor.Executor) *ExecutorHandler {
	return &ExecutorHandler{exec: exec}
}

// RegisterRoutes registers executor routes.
func (h *ExecutorHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/executor/execute", h.Execute)
}

type executeRequest struct {
	Command string `json:"command"`
}

// Execute runs one command against the execution boundary and returns its
// outcome in the boundary's own response shape.
func (h *ExecutorHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Command == "" {
		Error(w, http.StatusBadRequest, "command is required")
		return
	}

	outcome := h.exec.Execute(r.Context(), req.Command)
	if !outcome.Succeeded {
		JSON(w, http.StatusBadGateway, map[string]string{"error": outcome.Error})
		return
	}

	returnCode := 0
	if outcome.ExitStatus != nil {
		returnCode = *outcome.ExitStatus
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"return_code": returnCode,
		"output":      outcome.Output,
		"error":       outcome.Error,
	})
}
