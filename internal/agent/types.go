// Package agent implements the chat-driven desktop control pipeline: plan
// generation, command dispatch, and per-session conversation state.
package agent

import (
	"github.com/ashureev/deskagent/internal/domain"
)

// ChatRequest represents a chat request for one session turn.
type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ChatResult is the structured outcome of one turn. Success is false only
// for unexpected pipeline failures; planner degradation and per-command
// execution failures are reported inside Response instead.
type ChatResult struct {
	Success   bool                    `json:"success"`
	Response  string                  `json:"response"`
	Actions   []string                `json:"actions_taken"`
	Outcomes  []domain.CommandOutcome `json:"execution_results,omitempty"`
	Reasoning string                  `json:"ai_reasoning,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// turnMetadata is serialized into the assistant message's metadata column.
type turnMetadata struct {
	Action   string                  `json:"action,omitempty"`
	Commands []string                `json:"commands_suggested"`
	Outcomes []domain.CommandOutcome `json:"execution_results,omitempty"`
}
