package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/deskagent/internal/domain"
	"github.com/ashureev/deskagent/internal/executor"
	"github.com/ashureev/deskagent/internal/planner"
	"github.com/ashureev/deskagent/internal/store"
)

// SessionAgent owns one session's conversation history and runs the
// plan-dispatch-report pipeline for its turns. The agent is the sole
// mutator of its history, and history is strictly appended.
type SessionAgent struct {
	sessionID  string
	planner    planner.Planner
	dispatcher *executor.Dispatcher
	repo       store.Repository
	logger     *slog.Logger

	// mu serializes turns: at most one in-flight turn per session keeps
	// history append-order well-defined. A second concurrent message
	// queues behind the first.
	mu      sync.Mutex
	history []domain.ConversationTurn
}

// NewSessionAgent creates an agent for the given session. repo may be nil
// for a purely in-memory session.
func NewSessionAgent(sessionID string, pl planner.Planner, dispatcher *executor.Dispatcher, repo store.Repository, logger *slog.Logger) *SessionAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionAgent{
		sessionID:  sessionID,
		planner:    pl,
		dispatcher: dispatcher,
		repo:       repo,
		logger:     logger.With("session_id", sessionID),
	}
}

// ProcessMessage runs one full turn: plan the user's intent, dispatch the
// resulting commands, compose the report, and append the round to history.
// The caller always gets a textual result, even on total failure.
func (a *SessionAgent) ProcessMessage(ctx context.Context, userText string) (result ChatResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("turn processing panicked", "panic", r)
			result = ChatResult{
				Success:  false,
				Response: fmt.Sprintf("Agent error: %v", r),
				Actions:  []string{},
				Error:    fmt.Sprintf("%v", r),
			}
			a.recordTurn(userText, result.Response, "", nil, nil)
		}
	}()

	a.logger.Info("processing turn", "message_length", len(userText))

	// The planner window sees only prior turns; the new user text rides
	// alongside. Composition guarantees this never fails.
	raw, err := a.planner.Generate(ctx, a.history, userText)
	if err != nil {
		// Unreachable with the fallback composition, kept as a guard for
		// direct planner wiring in tests.
		a.logger.Error("planner failed without fallback", "error", err)
		result = ChatResult{
			Success:  false,
			Response: fmt.Sprintf("Agent error: %v", err),
			Actions:  []string{},
			Error:    err.Error(),
		}
		a.recordTurn(userText, result.Response, "", nil, nil)
		return result
	}

	commands := planner.Commands(raw)
	description := planner.Description(raw)

	var outcomes []domain.CommandOutcome
	if len(commands) > 0 {
		a.logger.Info("dispatching plan", "action", description, "commands", len(commands))
		outcomes = a.dispatcher.Dispatch(ctx, commands)
	}

	report := executor.ComposeReport(description, commands, outcomes)

	result = ChatResult{
		Success:   true,
		Response:  report,
		Actions:   commands,
		Outcomes:  outcomes,
		Reasoning: raw,
	}
	a.recordTurn(userText, report, description, commands, outcomes)
	return result
}

// History returns a copy of the conversation history.
func (a *SessionAgent) History() []domain.ConversationTurn {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.ConversationTurn, len(a.history))
	copy(out, a.history)
	return out
}

// recordTurn appends the round's input and output to the in-memory history
// and persists both messages. Persistence failures are logged, never fatal
// to the turn. Callers must hold a.mu.
func (a *SessionAgent) recordTurn(userText, response, action string, commands []string, outcomes []domain.CommandOutcome) {
	now := time.Now()
	a.history = append(a.history,
		domain.ConversationTurn{Role: domain.RoleUser, Text: userText, Timestamp: now},
		domain.ConversationTurn{Role: domain.RoleAssistant, Text: response, Timestamp: now},
	)

	if a.repo == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	userMsg := &domain.Message{
		SessionID: a.sessionID,
		Role:      domain.RoleUser,
		Type:      domain.MessageTypeText,
		Content:   userText,
		CreatedAt: now,
	}
	if err := a.repo.CreateMessage(ctx, userMsg); err != nil {
		a.logger.Warn("failed to persist user message", "error", err)
	}

	metadata, err := json.Marshal(turnMetadata{
		Action:   action,
		Commands: commands,
		Outcomes: outcomes,
	})
	if err != nil {
		a.logger.Warn("failed to marshal turn metadata", "error", err)
		metadata = nil
	}
	assistantMsg := &domain.Message{
		SessionID:    a.sessionID,
		Role:         domain.RoleAssistant,
		Type:         domain.MessageTypeAgentResponse,
		Content:      response,
		MetadataJSON: string(metadata),
		CreatedAt:    now,
	}
	if err := a.repo.CreateMessage(ctx, assistantMsg); err != nil {
		a.logger.Warn("failed to persist assistant message", "error", err)
	}

	if err := a.repo.TouchSession(ctx, a.sessionID, now); err != nil {
		a.logger.Warn("failed to touch session activity", "error", err)
	}
}
