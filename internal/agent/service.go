package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/deskagent/internal/executor"
	"github.com/ashureev/deskagent/internal/planner"
	"github.com/ashureev/deskagent/internal/store"
)

// Service is the session orchestrator: it owns the registry mapping session
// IDs to their live agents, so one planner instance and one history survive
// across a session's turns.
type Service struct {
	planner    planner.Planner
	dispatcher *executor.Dispatcher
	repo       store.Repository
	logger     *slog.Logger

	mu     sync.RWMutex
	agents map[string]*SessionAgent
}

// NewService creates the orchestrator.
func NewService(pl planner.Planner, dispatcher *executor.Dispatcher, repo store.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		planner:    pl,
		dispatcher: dispatcher,
		repo:       repo,
		logger:     logger,
		agents:     make(map[string]*SessionAgent),
	}
}

// Agent returns the live agent for a session, creating it on first use.
func (s *Service) Agent(sessionID string) *SessionAgent {
	s.mu.RLock()
	ag, ok := s.agents[sessionID]
	s.mu.RUnlock()
	if ok {
		return ag
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ag, ok := s.agents[sessionID]; ok {
		return ag
	}
	ag = NewSessionAgent(sessionID, s.planner, s.dispatcher, s.repo, s.logger)
	s.agents[sessionID] = ag
	s.logger.Info("session agent created", "session_id", sessionID)
	return ag
}

// Process runs one turn for the session.
func (s *Service) Process(ctx context.Context, sessionID, message string) ChatResult {
	return s.Agent(sessionID).ProcessMessage(ctx, message)
}

// Evict drops a session's in-memory agent, releasing its history. The next
// turn for that session starts fresh.
func (s *Service) Evict(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[sessionID]; ok {
		delete(s.agents, sessionID)
		s.logger.Info("session agent evicted", "session_id", sessionID)
	}
}

// ActiveSessions returns the number of live in-memory agents.
func (s *Service) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}

// StartReaper launches the idle-session worker: sessions inactive past the
// TTL are marked inactive in the store and their agents evicted. Runs until
// ctx is cancelled.
func (s *Service) StartReaper(ctx context.Context, ttl time.Duration) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("session reaper stopped")
				return
			case <-ticker.C:
				s.reapIdleSessions(ctx, ttl)
			}
		}
	}()
	s.logger.Info("session reaper started", "ttl", ttl, "interval", interval)
}

func (s *Service) reapIdleSessions(ctx context.Context, ttl time.Duration) {
	reapCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ids, err := s.repo.ExpireIdleSessions(reapCtx, ttl)
	if err != nil {
		s.logger.Error("failed to expire idle sessions", "error", err)
		return
	}
	for _, id := range ids {
		s.Evict(id)
	}
	if len(ids) > 0 {
		s.logger.Info("idle sessions expired", "count", len(ids))
	}
}
