package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/deskagent/internal/config"
	"github.com/ashureev/deskagent/internal/domain"
	"github.com/ashureev/deskagent/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

// AgentEvictor drops in-memory per-session agent state when a session goes
// away. Implemented by the agent service.
type AgentEvictor interface {
	Evict(sessionID string)
}

// SessionHandler handles session CRUD endpoints.
type SessionHandler struct {
	repo    store.Repository
	cfg     *config.Config
	evictor AgentEvictor
}

// NewSessionHandler creates a session handler. evictor may be nil.
func NewSessionHandler(repo store.Repository, cfg *config.Config, evictor AgentEvictor) *SessionHandler {
	return &SessionHandler{repo: repo, cfg: cfg, evictor: evictor}
}

// RegisterRoutes registers session routes.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/{sessionID}", h.Get)
		r.Patch("/{sessionID}", h.Update)
		r.Delete("/{sessionID}", h.Delete)
		r.Get("/{sessionID}/vnc", h.VNCDetails)
	})
}

type createSessionRequest struct {
	Title        string `json:"title"`
	Model        string `json:"model"`
	Provider     string `json:"api_provider"`
	SystemPrompt string `json:"system_prompt"`
	MaxTokens    int    `json:"max_tokens"`
}

type sessionResponse struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Status       string             `json:"status"`
	Model        string             `json:"model"`
	Provider     string             `json:"api_provider"`
	SystemPrompt string             `json:"system_prompt,omitempty"`
	MaxTokens    int                `json:"max_tokens"`
	VNC          *domain.VNCDetails `json:"vnc_details,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	LastActivity time.Time          `json:"last_activity"`
}

type sessionListResponse struct {
	Sessions []sessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}

// Create creates a new session bound to the configured VNC desktop.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sessionID := uuid.NewString()
	if req.Title == "" {
		req.Title = fmt.Sprintf("Session %s", sessionID[:8])
	}
	if req.Model == "" {
		req.Model = h.cfg.LLM.Model
	}
	if req.Provider == "" {
		req.Provider = h.cfg.LLM.Provider
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = h.cfg.LLM.MaxTokens
	}

	now := time.Now()
	session := &domain.Session{
		ID:           sessionID,
		Title:        req.Title,
		Status:       domain.SessionStatusActive,
		Model:        req.Model,
		Provider:     req.Provider,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
		VNCDisplay:   h.cfg.VNC.Display,
		VNCPort:      h.cfg.VNC.Port,
		VNCPassword:  h.cfg.VNC.Password,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActivity: now,
	}

	if err := h.repo.CreateSession(r.Context(), session); err != nil {
		slog.Error("Failed to create session", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	slog.Info("Session created", "session_id", sessionID, "provider", session.Provider)
	JSON(w, http.StatusCreated, h.toResponse(session))
}

// List returns sessions, optionally filtered by status.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	var status *domain.SessionStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := domain.SessionStatus(raw)
		if !s.Valid() {
			Error(w, http.StatusBadRequest, "invalid status filter")
			return
		}
		status = &s
	}

	sessions, err := h.repo.ListSessions(r.Context(), status, limit, offset)
	if err != nil {
		slog.Error("Failed to list sessions", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	resp := sessionListResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, h.toResponse(s))
	}
	resp.Total = len(resp.Sessions)
	JSON(w, http.StatusOK, resp)
}

// Get returns one session.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, h.toResponse(session))
}

type updateSessionRequest struct {
	Title        *string `json:"title"`
	Status       *string `json:"status"`
	SystemPrompt *string `json:"system_prompt"`
	MaxTokens    *int    `json:"max_tokens"`
}

// Update applies a partial update to a session.
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req updateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := store.SessionUpdate{
		Title:        req.Title,
		SystemPrompt: req.SystemPrompt,
		MaxTokens:    req.MaxTokens,
	}
	if req.Status != nil {
		s := domain.SessionStatus(*req.Status)
		if !s.Valid() {
			Error(w, http.StatusBadRequest, "invalid status")
			return
		}
		upd.Status = &s
	}

	session, err := h.repo.UpdateSession(r.Context(), sessionID, upd)
	if err != nil {
		slog.Error("Failed to update session", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to update session")
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, h.toResponse(session))
}

// Delete removes a session, its messages, and its in-memory agent.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	deleted, err := h.repo.DeleteSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to delete session", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to delete session")
		return
	}
	if !deleted {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	if h.evictor != nil {
		h.evictor.Evict(sessionID)
	}
	JSON(w, http.StatusOK, map[string]string{"message": "Session deleted successfully"})
}

// VNCDetails returns the remote desktop connection details for a session.
func (h *SessionHandler) VNCDetails(w http.ResponseWriter, r *http.Request) {
	session, ok := h.loadSession(w, r)
	if !ok {
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id": session.ID,
		"vnc":        h.vncDetails(session),
		"desktop": map[string]int{
			"width":  h.cfg.VNC.Width,
			"height": h.cfg.VNC.Height,
		},
	})
}

func (h *SessionHandler) loadSession(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to load session", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return nil, false
	}
	if session == nil {
		Error(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	return session, true
}

func (h *SessionHandler) toResponse(s *domain.Session) sessionResponse {
	resp := sessionResponse{
		ID:           s.ID,
		Title:        s.Title,
		Status:       string(s.Status),
		Model:        s.Model,
		Provider:     s.Provider,
		SystemPrompt: s.SystemPrompt,
		MaxTokens:    s.MaxTokens,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		LastActivity: s.LastActivity,
	}
	if s.VNCPort != 0 && s.VNCDisplay != "" {
		details := h.vncDetails(s)
		resp.VNC = &details
	}
	return resp
}

func (h *SessionHandler) vncDetails(s *domain.Session) domain.VNCDetails {
	return domain.VNCDetails{
		Host:     "localhost",
		Display:  s.VNCDisplay,
		Port:     s.VNCPort,
		Password: s.VNCPassword,
		WebURL: fmt.Sprintf("http://localhost:%d/vnc.html?host=localhost&port=%d",
			h.cfg.VNC.WebPort, s.VNCPort),
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
