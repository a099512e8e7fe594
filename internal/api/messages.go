package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/deskagent/internal/domain"
	"github.com/ashureev/deskagent/internal/store"
	"github.com/go-chi/chi/v5"
)

// MessageHandler handles chat-history endpoints.
type MessageHandler struct {
	repo store.Repository
}

// NewMessageHandler creates a message handler.
func NewMessageHandler(repo store.Repository) *MessageHandler {
	return &MessageHandler{repo: repo}
}

// RegisterRoutes registers message routes.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions/{sessionID}/messages", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
	})
}

type messageResponse struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Role      string          `json:"role"`
	Type      string          `json:"message_type"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type messageListResponse struct {
	Messages []messageResponse `json:"messages"`
	Total    int               `json:"total"`
}

// List returns a session's messages in creation order.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	session, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to load session", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	limit := queryInt(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	messages, err := h.repo.ListMessages(r.Context(), sessionID, limit, offset)
	if err != nil {
		slog.Error("Failed to list messages", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to list messages")
		return
	}

	resp := messageListResponse{Messages: make([]messageResponse, 0, len(messages))}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, toMessageResponse(m))
	}
	resp.Total = len(resp.Messages)
	JSON(w, http.StatusOK, resp)
}

type createMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Create appends a message to a session's persisted history. This is the
// raw history surface; chat turns normally arrive via the agent endpoint.
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req createMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		Error(w, http.StatusBadRequest, "content is required")
		return
	}
	role := domain.MessageRole(req.Role)
	if role != domain.RoleUser && role != domain.RoleAssistant && role != domain.RoleSystem {
		Error(w, http.StatusBadRequest, "invalid role")
		return
	}

	session, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to load session", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	msg := &domain.Message{
		SessionID: sessionID,
		Role:      role,
		Type:      domain.MessageTypeText,
		Content:   req.Content,
		CreatedAt: time.Now(),
	}
	if err := h.repo.CreateMessage(r.Context(), msg); err != nil {
		slog.Error("Failed to create message", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to create message")
		return
	}

	JSON(w, http.StatusCreated, toMessageResponse(msg))
}

func toMessageResponse(m *domain.Message) messageResponse {
	resp := messageResponse{
		ID:        m.ID,
		SessionID: m.SessionID,
		Role:      string(m.Role),
		Type:      string(m.Type),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.MetadataJSON != "" && json.Valid([]byte(m.MetadataJSON)) {
		resp.Metadata = json.RawMessage(m.MetadataJSON)
	}
	return resp
}
