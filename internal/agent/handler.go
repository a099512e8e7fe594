package agent

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/deskagent/internal/api"
	"github.com/ashureev/deskagent/internal/config"
	"github.com/ashureev/deskagent/internal/domain"
	"github.com/ashureev/deskagent/internal/store"
	"github.com/go-chi/chi/v5"
)

// maxRequestBodySize is the maximum allowed chat request body (1MB).
const maxRequestBodySize = 1 << 20

// Handler exposes the chat pipeline over HTTP.
type Handler struct {
	svc         *Service
	repo        store.Repository
	rateLimiter *RateLimiter
}

// NewHandler creates the agent HTTP handler.
func NewHandler(svc *Service, repo store.Repository, cfg *config.Config) *Handler {
	limit := 10
	window := time.Minute
	if cfg != nil {
		limit = cfg.RateLimit.RequestsPerWindow
		window = cfg.RateLimit.WindowDuration
	}
	return &Handler{
		svc:         svc,
		repo:        repo,
		rateLimiter: NewRateLimiter(limit, window),
	}
}

// RegisterRoutes registers agent routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/agent", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
	})
}

// HandleChat runs one chat turn for a session and returns the structured
// result. Partial command failures come back as a 200 with the report;
// only unexpected pipeline failures surface success=false.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		api.Error(w, http.StatusBadRequest, "session_id is required")
		return
	}
	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	session, err := h.repo.GetSession(r.Context(), req.SessionID)
	if err != nil {
		slog.Error("failed to load session", "session_id", req.SessionID, "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session == nil {
		api.Error(w, http.StatusNotFound, "session not found")
		return
	}
	if session.Status != domain.SessionStatusActive {
		api.Error(w, http.StatusConflict, "session is not active")
		return
	}

	if !h.rateLimiter.Allow(req.SessionID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	slog.Info("Agent chat request",
		"session_id", req.SessionID,
		"message_length", len(req.Message),
	)

	result := h.svc.Process(r.Context(), req.SessionID, req.Message)
	api.JSON(w, http.StatusOK, result)
}

// RateLimiter implements a per-session rate limiter.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
}

// NewRateLimiter creates a new rate limiter and starts the background
// eviction goroutine.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
	rl.startEviction()
	return rl
}

// Allow checks if a request is allowed for the given key.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// startEviction runs a background goroutine that periodically removes
// expired keys from the requests map, preventing unbounded memory growth.
func (r *RateLimiter) startEviction() {
	go func() {
		ticker := time.NewTicker(r.window)
		defer ticker.Stop()
		for range ticker.C {
			r.mu.Lock()
			cutoff := time.Now().Add(-r.window)
			for key, times := range r.requests {
				var fresh []time.Time
				for _, t := range times {
					if t.After(cutoff) {
						fresh = append(fresh, t)
					}
				}
				if len(fresh) == 0 {
					delete(r.requests, key)
				} else {
					r.requests[key] = fresh
				}
			}
			r.mu.Unlock()
		}
	}()
}
