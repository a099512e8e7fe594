// Package executor dispatches automation commands to the execution boundary
// that drives the VNC desktop, and composes the per-command outcomes into a
// user-facing report.
package executor

import (
	"context"

	"github.com/ashureev/deskagent/internal/domain"
)

// Executor runs one command against the execution boundary. Implementations
// must fold every failure mode into the returned outcome; Execute never
// returns an error and never panics.
type Executor interface {
	Execute(ctx context.Context, command string) domain.CommandOutcome
}
