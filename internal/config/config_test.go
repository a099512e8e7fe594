package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.SessionTTL != 60*time.Minute {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.LLM.Provider != "comet" || cfg.LLM.MaxTokens != 1024 {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.LLM.Enabled() {
		t.Error("LLM enabled without an API key")
	}
	if cfg.Executor.Mode != "http" || cfg.Executor.CommandTimeout != 30*time.Second {
		t.Errorf("Executor = %+v", cfg.Executor)
	}
	if cfg.VNC.Display != ":1" || cfg.VNC.Port != 5900 {
		t.Errorf("VNC = %+v", cfg.VNC)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("COMET_API_KEY", "sk-test")
	t.Setenv("EXECUTOR_MODE", "docker")
	t.Setenv("VNC_CONTAINER_NAME", "desktop-1")
	t.Setenv("COMMAND_TIMEOUT", "45s")
	t.Setenv("COMET_MAX_TOKENS", "2048")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if !cfg.LLM.Enabled() {
		t.Error("LLM not enabled with API key set")
	}
	if cfg.Executor.Mode != "docker" || cfg.Executor.ContainerName != "desktop-1" {
		t.Errorf("Executor = %+v", cfg.Executor)
	}
	if cfg.Executor.CommandTimeout != 45*time.Second {
		t.Errorf("CommandTimeout = %v", cfg.Executor.CommandTimeout)
	}
	if cfg.LLM.MaxTokens != 2048 {
		t.Errorf("MaxTokens = %d", cfg.LLM.MaxTokens)
	}
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	t.Setenv("COMET_MAX_TOKENS", "not-a-number")
	t.Setenv("SESSION_TTL", "bogus")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.MaxTokens != 1024 {
		t.Errorf("MaxTokens = %d, want default 1024", cfg.LLM.MaxTokens)
	}
	if cfg.SessionTTL != 60*time.Minute {
		t.Errorf("SessionTTL = %v, want default", cfg.SessionTTL)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"unknown executor mode", func(c *Config) { c.Executor.Mode = "ssh" }},
		{"http mode without url", func(c *Config) { c.Executor.URL = "" }},
		{"docker mode without container", func(c *Config) {
			c.Executor.Mode = "docker"
			c.Executor.ContainerName = ""
		}},
		{"zero command timeout", func(c *Config) { c.Executor.CommandTimeout = 0 }},
		{"zero max tokens", func(c *Config) { c.LLM.MaxTokens = 0 }},
		{"zero rate limit", func(c *Config) { c.RateLimit.RequestsPerWindow = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{
				Port:   "8080",
				DBPath: "./data/test.db",
				LLM:    LLMConfig{MaxTokens: 1024},
				Executor: ExecutorConfig{
					Mode:           "http",
					URL:            "http://vnc-agent:8090",
					ContainerName:  "desktop",
					CommandTimeout: 30 * time.Second,
				},
				RateLimit: RateLimitConfig{RequestsPerWindow: 10},
			}
			if err := cfg.Validate(); err != nil {
				t.Fatalf("baseline config invalid: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		frontendURL string
		want        bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"https://desk.example.com", false},
	}
	for _, tt := range tests {
		cfg := &Config{FrontendURL: tt.frontendURL}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tt.frontendURL, got, tt.want)
		}
	}
}
