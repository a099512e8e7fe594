package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/deskagent/internal/agent"
	"github.com/ashureev/deskagent/internal/domain"
	"github.com/ashureev/deskagent/internal/store"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
)

const processTimeout = 5 * time.Minute

// Handler streams agent conversations over WebSocket connections.
type Handler struct {
	svc           *agent.Service
	repo          store.Repository
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a new WebSocket stream handler.
func NewHandler(svc *agent.Service, repo store.Repository, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		svc:           svc,
		repo:          repo,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// RegisterRoutes registers the WebSocket endpoint on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/sessions/{sessionID}/stream", h.ServeHTTP)
}

// wsMessage represents the frame structure in both directions.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// ServeHTTP upgrades the connection and runs the message loop.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	slog.Info("WebSocket connection request", "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	session, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to load session", "error", err, "session_id", sessionID)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if session == nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if session.Status != domain.SessionStatusActive {
		http.Error(w, "session not active", http.StatusConflict)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := h.writeJSON(ws, wsMessage{Type: "connected", Content: sessionID}); err != nil {
		slog.Debug("Failed to send connected frame", "error", err)
		return
	}

	h.messageLoop(ctx, ws, sessionID)
	slog.Info("WebSocket session ended", "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) messageLoop(ctx context.Context, ws *websocket.Conn, sessionID string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			if err := h.writeJSON(ws, wsMessage{Type: "error", Content: "invalid message"}); err != nil {
				slog.Debug("Failed to send error frame", "error", err)
				return
			}
			continue
		}

		switch msg.Type {
		case "ping":
			if err := h.writeJSON(ws, wsMessage{Type: "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
				return
			}
		case "user_message":
			if msg.Content == "" {
				if err := h.writeJSON(ws, wsMessage{Type: "error", Content: "message content is required"}); err != nil {
					return
				}
				continue
			}
			if err := h.handleUserMessage(ctx, ws, sessionID, msg.Content); err != nil {
				return
			}
		default:
			if err := h.writeJSON(ws, wsMessage{Type: "error", Content: "unknown message type"}); err != nil {
				return
			}
		}
	}
}

func (h *Handler) handleUserMessage(ctx context.Context, ws *websocket.Conn, sessionID, content string) error {
	if err := h.writeJSON(ws, wsMessage{Type: "status", Content: "processing"}); err != nil {
		return err
	}

	procCtx, cancel := context.WithTimeout(ctx, processTimeout)
	result := h.svc.Process(procCtx, sessionID, content)
	cancel()

	if !result.Success {
		return h.writeJSON(ws, wsMessage{Type: "error", Content: result.Error})
	}

	data, err := json.Marshal(result)
	if err != nil {
		slog.Error("Failed to marshal chat result", "error", err)
		return h.writeJSON(ws, wsMessage{Type: "error", Content: "internal error"})
	}
	return h.writeJSON(ws, wsMessage{Type: "agent_message", Content: string(data)})
}

func (h *Handler) writeJSON(ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(context.Background(), websocket.MessageText, data)
}
