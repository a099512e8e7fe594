// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/deskagent/internal/domain"
)

// SessionUpdate carries the mutable session fields for a partial update.
// Nil fields are left untouched.
type SessionUpdate struct {
	Title        *string
	Status       *domain.SessionStatus
	SystemPrompt *string
	MaxTokens    *int
}

// Repository defines the interface for persisting sessions and messages.
type Repository interface {
	// CreateSession persists a new session.
	CreateSession(ctx context.Context, session *domain.Session) error

	// GetSession retrieves a session by ID, or nil if it does not exist.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// ListSessions returns sessions ordered by creation time, newest
	// first. status filters when non-nil.
	ListSessions(ctx context.Context, status *domain.SessionStatus, limit, offset int) ([]*domain.Session, error)

	// UpdateSession applies a partial update and returns the updated
	// session, or nil if it does not exist.
	UpdateSession(ctx context.Context, sessionID string, upd SessionUpdate) (*domain.Session, error)

	// DeleteSession removes a session and its messages. Returns false if
	// no session existed.
	DeleteSession(ctx context.Context, sessionID string) (bool, error)

	// TouchSession updates the session's last-activity timestamp.
	TouchSession(ctx context.Context, sessionID string, at time.Time) error

	// ExpireIdleSessions marks active sessions idle past the TTL as
	// inactive and returns their IDs.
	ExpireIdleSessions(ctx context.Context, ttl time.Duration) ([]string, error)

	// CreateMessage appends a message to a session's history and fills in
	// its assigned ID.
	CreateMessage(ctx context.Context, msg *domain.Message) error

	// ListMessages returns a session's messages in creation order.
	ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]*domain.Message, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
