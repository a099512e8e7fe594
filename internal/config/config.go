// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	SessionTTL  time.Duration
	LLM         LLMConfig
	Executor    ExecutorConfig
	VNC         VNCConfig
	RateLimit   RateLimitConfig
}

// LLMConfig configures the generative planner backend.
type LLMConfig struct {
	Provider  string
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Enabled reports whether the generative backend can be used at all.
// Without a credential every turn goes straight to the fallback planner.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// ExecutorConfig configures the command execution boundary.
type ExecutorConfig struct {
	// Mode selects the boundary implementation: "http" posts commands to
	// the VNC executor service, "docker" execs directly into the VNC
	// container on the local daemon.
	Mode           string
	URL            string
	ContainerName  string
	CommandTimeout time.Duration
}

// VNCConfig describes the remote desktop sessions attach to.
type VNCConfig struct {
	Display  string
	Password string
	Port     int
	WebPort  int
	Width    int
	Height   int
}

// RateLimitConfig bounds chat request rates per session.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/deskagent.db"),
		SessionTTL:  getEnvDuration("SESSION_TTL", 60*time.Minute),
		LLM: LLMConfig{
			Provider:  getEnv("API_PROVIDER", "comet"),
			BaseURL:   getEnv("COMET_API_BASE_URL", "https://api.cometapi.com/v1"),
			APIKey:    getEnv("COMET_API_KEY", ""),
			Model:     getEnv("COMET_MODEL", "cometapi-3-7-sonnet"),
			MaxTokens: getEnvInt("COMET_MAX_TOKENS", 1024),
			Timeout:   getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Executor: ExecutorConfig{
			Mode:           getEnv("EXECUTOR_MODE", "http"),
			URL:            getEnv("EXECUTOR_URL", "http://vnc-agent:8090"),
			ContainerName:  getEnv("VNC_CONTAINER_NAME", "deskagent-vnc-agent-1"),
			CommandTimeout: getEnvDuration("COMMAND_TIMEOUT", 30*time.Second),
		},
		VNC: VNCConfig{
			Display:  getEnv("VNC_DISPLAY", ":1"),
			Password: getEnv("VNC_PASSWORD", "vncpassword"),
			Port:     getEnvInt("VNC_PORT", 5900),
			WebPort:  getEnvInt("VNC_WEB_PORT", 6080),
			Width:    getEnvInt("VNC_WIDTH", 1024),
			Height:   getEnvInt("VNC_HEIGHT", 768),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Executor.Mode != "http" && c.Executor.Mode != "docker" {
		return fmt.Errorf("EXECUTOR_MODE must be \"http\" or \"docker\", got %q", c.Executor.Mode)
	}
	if c.Executor.Mode == "http" && c.Executor.URL == "" {
		return fmt.Errorf("EXECUTOR_URL cannot be empty in http mode")
	}
	if c.Executor.Mode == "docker" && c.Executor.ContainerName == "" {
		return fmt.Errorf("VNC_CONTAINER_NAME cannot be empty in docker mode")
	}
	if c.Executor.CommandTimeout <= 0 {
		return fmt.Errorf("COMMAND_TIMEOUT must be > 0")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("COMET_MAX_TOKENS must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
