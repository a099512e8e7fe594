package domain

import (
	"time"
)

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// MessageType categorizes persisted messages.
type MessageType string

const (
	MessageTypeText          MessageType = "text"
	MessageTypeAgentResponse MessageType = "agent_response"
)

// Message is one persisted chat history entry.
type Message struct {
	ID        int64
	SessionID string
	Role      MessageRole
	Type      MessageType
	Content   string
	// MetadataJSON carries serialized per-message metadata, such as the
	// action plan and execution outcomes for an assistant turn.
	MetadataJSON string
	CreatedAt    time.Time
}
