// Package domain defines the core entities shared across the service.
package domain

import (
	"time"
)

// SessionStatus describes the lifecycle state of a session.
type SessionStatus string

const (
	SessionStatusActive     SessionStatus = "active"
	SessionStatusInactive   SessionStatus = "inactive"
	SessionStatusTerminated SessionStatus = "terminated"
	SessionStatusError      SessionStatus = "error"
)

// Valid reports whether the status is one of the known lifecycle states.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusActive, SessionStatusInactive, SessionStatusTerminated, SessionStatusError:
		return true
	}
	return false
}

// VNCDetails holds the connection parameters for a session's remote desktop.
type VNCDetails struct {
	Host     string `json:"host"`
	Display  string `json:"display"`
	Port     int    `json:"port"`
	Password string `json:"password,omitempty"`
	WebURL   string `json:"web_url"`
}

// Session is a persisted chat session bound to one remote desktop.
type Session struct {
	ID           string
	Title        string
	Status       SessionStatus
	Model        string
	Provider     string
	SystemPrompt string
	MaxTokens    int
	VNCDisplay   string
	VNCPort      int
	VNCPassword  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastActivity time.Time
}
