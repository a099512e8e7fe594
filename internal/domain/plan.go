package domain

import (
	"time"
)

// ConversationTurn is one entry in a session's in-memory conversation
// history. Turns are appended by the session agent and never mutated.
type ConversationTurn struct {
	Role      MessageRole `json:"role"`
	Text      string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// ActionPlan is the structured plan a planner derives from user intent: a
// short description plus the ordered automation commands that realize it.
// Command order is significant; a launch must run before the keystrokes
// that target it.
type ActionPlan struct {
	Action   string   `json:"action"`
	Commands []string `json:"commands"`
}

// CommandOutcome records the result of dispatching a single command to the
// execution boundary. Outcomes align index-for-index with the plan's
// command list.
type CommandOutcome struct {
	Command   string `json:"command"`
	Succeeded bool   `json:"success"`
	// ExitStatus is the remote process exit code, absent when the command
	// never ran (transport failure, timeout, non-200 response).
	ExitStatus *int   `json:"return_code,omitempty"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}
