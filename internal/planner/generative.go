package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/deskagent/internal/config"
	"github.com/ashureev/deskagent/internal/domain"
)

// ErrDisabled is returned when no credential is configured for the
// generative backend.
var ErrDisabled = errors.New("generative planner disabled: no API key configured")

var errEmptyResponse = errors.New("generative backend returned an empty body")

// Generative asks an external language-generation backend for an action
// plan. The backend speaks a chat-completions style API: POST {model,
// max_tokens, messages} with a bearer credential, JSON response in one of
// several known shapes.
type Generative struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	logger    *slog.Logger
}

// NewGenerative creates a planner against the configured backend.
func NewGenerative(cfg config.LLMConfig, logger *slog.Logger) *Generative {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generative{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
}

// Generate sends the system prompt, a bounded window of prior turns, and the
// new user message to the backend and returns its raw text reply. Any
// failure is returned as an error; the caller is expected to degrade to the
// deterministic fallback.
func (g *Generative) Generate(ctx context.Context, history []domain.ConversationTurn, userText string) (string, error) {
	if g.apiKey == "" {
		return "", ErrDisabled
	}

	messages := make([]chatMessage, 0, historyWindow+2)
	messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	recent := history
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}
	for _, turn := range recent {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Text})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userText})

	body, err := json.Marshal(chatRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generative backend request: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			g.logger.Debug("failed to close response body", "error", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generative backend response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generative backend returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	if text, ok := probeResponseText(raw); ok {
		return text, nil
	}
	// Unknown shape but non-empty body: hand it through as best effort and
	// let extraction decide whether anything is executable.
	if trimmed := strings.TrimSpace(string(raw)); trimmed != "" {
		g.logger.Warn("generative backend returned unrecognized shape, using raw body", "bytes", len(raw))
		return string(raw), nil
	}
	return "", errEmptyResponse
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responseEnvelope struct {
	Content  json.RawMessage `json:"content"`
	Messages []chatMessage   `json:"messages"`
	Choices  []struct {
		Message *chatMessage `json:"message"`
		Delta   *chatMessage `json:"delta"`
	} `json:"choices"`
}

// probeResponseText searches the known backend response shapes in fixed
// priority order: Anthropic-style content blocks, a flat content string, a
// chat messages array, then an OpenAI-style choices array.
func probeResponseText(raw []byte) (string, bool) {
	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", false
	}

	if len(env.Content) > 0 {
		var blocks []contentBlock
		if err := json.Unmarshal(env.Content, &blocks); err == nil && len(blocks) > 0 {
			if blocks[0].Type == "text" && strings.TrimSpace(blocks[0].Text) != "" {
				return blocks[0].Text, true
			}
		}
		var flat string
		if err := json.Unmarshal(env.Content, &flat); err == nil && strings.TrimSpace(flat) != "" {
			return flat, true
		}
	}

	if len(env.Messages) > 0 {
		last := env.Messages[len(env.Messages)-1]
		if last.Role == "assistant" && strings.TrimSpace(last.Content) != "" {
			return last.Content, true
		}
	}

	if len(env.Choices) > 0 {
		msg := env.Choices[0].Message
		if msg == nil {
			msg = env.Choices[0].Delta
		}
		if msg != nil && strings.TrimSpace(msg.Content) != "" {
			return msg.Content, true
		}
	}

	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
