// Package planner turns natural-language chat input into structured desktop
// automation plans. The primary planner asks a generative backend for a plan;
// the deterministic fallback pattern-matches a fixed intent catalog and is
// used whenever the primary path fails.
package planner

import (
	"context"
	"log/slog"

	"github.com/ashureev/deskagent/internal/domain"
)

// Planner produces raw plan text for a user turn given the prior
// conversation. The text is expected to carry a JSON action plan but callers
// must treat it as untrusted model output and recover the plan with
// Commands and Description.
type Planner interface {
	Generate(ctx context.Context, history []domain.ConversationTurn, userText string) (string, error)
}

// WithFallback composes a primary planner with the deterministic fallback.
// Any primary failure degrades to the fallback, which always succeeds, so
// the composed planner never returns an error.
type WithFallback struct {
	primary  Planner
	fallback *Fallback
	logger   *slog.Logger
}

// NewWithFallback wraps primary with fallback degradation. primary may be
// nil, in which case every turn is planned deterministically.
func NewWithFallback(primary Planner, fallback *Fallback, logger *slog.Logger) *WithFallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &WithFallback{primary: primary, fallback: fallback, logger: logger}
}

// Generate tries the primary planner and degrades to the deterministic
// fallback on any failure. The returned error is always nil.
func (p *WithFallback) Generate(ctx context.Context, history []domain.ConversationTurn, userText string) (string, error) {
	if p.primary != nil {
		raw, err := p.primary.Generate(ctx, history, userText)
		if err == nil {
			return raw, nil
		}
		p.logger.Warn("primary planner failed, using fallback", "error", err)
	}
	return p.fallback.Plan(userText), nil
}
