package executor

import (
	"fmt"
	"strings"

	"github.com/ashureev/deskagent/internal/domain"
)

const (
	reportCommandWidth = 50
	reportExcerptWidth = 100
)

// ComposeReport merges per-command outcomes into one human-readable status
// report: a header with the plan description and success/failure counts,
// then one marker line per command in dispatch order.
func ComposeReport(description string, commands []string, outcomes []domain.CommandOutcome) string {
	if len(commands) == 0 {
		return "[REPORT]: No commands to execute."
	}
	if description == "" {
		description = "Command execution"
	}

	successful := 0
	for _, o := range outcomes {
		if o.Succeeded {
			successful++
		}
	}
	failed := len(outcomes) - successful

	var b strings.Builder
	fmt.Fprintf(&b, "[REPORT]: %s - %d successful, %d failed\n", description, successful, failed)

	for i, o := range outcomes {
		cmd := truncateText(o.Command, reportCommandWidth)
		if o.Succeeded {
			fmt.Fprintf(&b, "✅ Command %d: %s\n", i+1, cmd)
			if out := strings.TrimSpace(o.Output); out != "" {
				fmt.Fprintf(&b, "   Output: %s\n", excerpt(out))
			}
		} else {
			fmt.Fprintf(&b, "❌ Command %d: %s\n", i+1, cmd)
			errText := o.Error
			if errText == "" {
				errText = "Unknown error"
			}
			fmt.Fprintf(&b, "   Error: %s\n", excerpt(errText))
		}
	}

	return b.String()
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func excerpt(s string) string {
	if len(s) <= reportExcerptWidth {
		return s
	}
	return s[:reportExcerptWidth]
}
