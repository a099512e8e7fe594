package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/deskagent/internal/domain"
)

// Dispatcher runs a plan's commands against an execution boundary, one at a
// time in plan order. Order is part of the contract: a launch command must
// land before the keystrokes that target it, so commands are never
// reordered or parallelized within a plan.
type Dispatcher struct {
	exec    Executor
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher with a per-command timeout.
func NewDispatcher(exec Executor, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{exec: exec, timeout: timeout, logger: logger}
}

// Dispatch executes every command sequentially and returns one outcome per
// command, index-aligned with the input. A failed command never aborts the
// rest of the batch; partial failure is expected and recorded per command.
func (d *Dispatcher) Dispatch(ctx context.Context, commands []string) []domain.CommandOutcome {
	outcomes := make([]domain.CommandOutcome, 0, len(commands))
	for _, cmd := range commands {
		cmdCtx, cancel := context.WithTimeout(ctx, d.timeout)
		outcome := d.exec.Execute(cmdCtx, cmd)
		cancel()

		if !outcome.Succeeded {
			d.logger.Warn("command failed", "command", cmd, "error", outcome.Error)
		} else {
			d.logger.Debug("command executed", "command", cmd)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
