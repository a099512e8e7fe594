package executor

import (
	"strings"
	"testing"

	"github.com/ashureev/deskagent/internal/domain"
)

func TestComposeReportEmptyPlan(t *testing.T) {
	t.Parallel()
	got := ComposeReport("Opening calculator", nil, nil)
	if got != "[REPORT]: No commands to execute." {
		t.Errorf("ComposeReport() = %q", got)
	}
}

func TestComposeReportCounts(t *testing.T) {
	t.Parallel()
	code := 0
	commands := []string{"DISPLAY=:1 xcalc &", "xdotool key Return", "bad"}
	outcomes := []domain.CommandOutcome{
		{Command: "DISPLAY=:1 xcalc &", Succeeded: true, ExitStatus: &code},
		{Command: "xdotool key Return", Succeeded: true, ExitStatus: &code, Output: "done"},
		{Command: "bad", Error: "command not found"},
	}

	got := ComposeReport("Opening calculator", commands, outcomes)

	wantHeader := "[REPORT]: Opening calculator - 2 successful, 1 failed\n"
	if !strings.HasPrefix(got, wantHeader) {
		t.Errorf("report header = %q, want prefix %q", got, wantHeader)
	}
	for _, want := range []string{
		"✅ Command 1: DISPLAY=:1 xcalc &",
		"✅ Command 2: xdotool key Return",
		"   Output: done",
		"❌ Command 3: bad",
		"   Error: command not found",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}

func TestComposeReportDefaultDescription(t *testing.T) {
	t.Parallel()
	outcomes := []domain.CommandOutcome{{Command: "xdotool key Tab", Succeeded: true}}
	got := ComposeReport("", []string{"xdotool key Tab"}, outcomes)
	if !strings.HasPrefix(got, "[REPORT]: Command execution - 1 successful, 0 failed\n") {
		t.Errorf("report = %q", got)
	}
}

func TestComposeReportTruncation(t *testing.T) {
	t.Parallel()
	longCmd := strings.Repeat("x", 80)
	longErr := strings.Repeat("e", 150)
	outcomes := []domain.CommandOutcome{{Command: longCmd, Error: longErr}}

	got := ComposeReport("Long stuff", []string{longCmd}, outcomes)

	wantCmd := "❌ Command 1: " + strings.Repeat("x", 50) + "...\n"
	if !strings.Contains(got, wantCmd) {
		t.Errorf("report missing truncated command line:\n%s", got)
	}
	wantErr := "   Error: " + strings.Repeat("e", 100) + "\n"
	if !strings.Contains(got, wantErr) {
		t.Errorf("report missing truncated error line:\n%s", got)
	}
	if strings.Contains(got, strings.Repeat("e", 101)) {
		t.Errorf("error excerpt not cut at 100 characters:\n%s", got)
	}
}

func TestComposeReportUnknownError(t *testing.T) {
	t.Parallel()
	outcomes := []domain.CommandOutcome{{Command: "oops"}}
	got := ComposeReport("x", []string{"oops"}, outcomes)
	if !strings.Contains(got, "   Error: Unknown error\n") {
		t.Errorf("report = %q", got)
	}
}
