package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/deskagent/internal/domain"
)

// HTTPExecutor sends commands to the VNC executor service over its fixed
// JSON contract: POST /execute {"command": ...} returning {"return_code",
// "output", "error"}.
type HTTPExecutor struct {
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewHTTPExecutor creates an executor against the service at baseURL. The
// timeout applies per command.
func NewHTTPExecutor(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPExecutor{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type executeRequest struct {
	Command string `json:"command"`
}

type executeResponse struct {
	ReturnCode int    `json:"return_code"`
	Output     string `json:"output"`
	Error      string `json:"error"`
}

// Execute runs one command remotely. All transport and protocol failures
// are folded into a failed outcome.
func (e *HTTPExecutor) Execute(ctx context.Context, command string) domain.CommandOutcome {
	outcome := domain.CommandOutcome{Command: command}

	body, err := json.Marshal(executeRequest{Command: command})
	if err != nil {
		outcome.Error = fmt.Sprintf("encode command: %v", err)
		return outcome
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		outcome.Error = fmt.Sprintf("build request: %v", err)
		return outcome
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Warn("executor request failed", "command", command, "error", err)
		outcome.Error = err.Error()
		return outcome
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			e.logger.Debug("failed to close executor response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		outcome.Error = fmt.Sprintf("read response: %v", err)
		return outcome
	}

	if resp.StatusCode != http.StatusOK {
		e.logger.Warn("executor returned non-200", "command", command, "status", resp.StatusCode)
		outcome.Error = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(raw))
		return outcome
	}

	var result executeResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		outcome.Error = fmt.Sprintf("decode response: %v", err)
		return outcome
	}

	outcome.Succeeded = true
	outcome.ExitStatus = &result.ReturnCode
	outcome.Output = result.Output
	outcome.Error = result.Error
	return outcome
}
