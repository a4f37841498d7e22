package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "FRONTEND_URL", "DB_PATH", "BACKEND_URL", "AGENT_SERVICE_URL",
		"REQUEST_TIMEOUT_MS", "POLL_INTERVAL_MS", "POLL_MAX_ATTEMPTS",
	} {
		// t.Setenv records the original value for restoration, then the
		// key is cleared so defaults apply.
		t.Setenv(key, "")
		unsetEnv(t, key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("unexpected default port: %s", cfg.Port)
	}
	if cfg.BackendURL != "http://localhost:3001" {
		t.Errorf("unexpected default backend url: %s", cfg.BackendURL)
	}
	if cfg.AgentServiceURL != "http://localhost:3002" {
		t.Errorf("unexpected default agent service url: %s", cfg.AgentServiceURL)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("unexpected default request timeout: %s", cfg.RequestTimeout)
	}
	if cfg.Poll.Interval != 500*time.Millisecond {
		t.Errorf("unexpected default poll interval: %s", cfg.Poll.Interval)
	}
	if cfg.Poll.MaxAttempts != 30 {
		t.Errorf("unexpected default poll attempts: %d", cfg.Poll.MaxAttempts)
	}
	if !cfg.IsDevelopment() {
		t.Error("empty FRONTEND_URL should mean development mode")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("POLL_INTERVAL_MS", "250")
	t.Setenv("POLL_MAX_ATTEMPTS", "10")
	t.Setenv("REQUEST_TIMEOUT_MS", "5000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("unexpected port: %s", cfg.Port)
	}
	if cfg.Poll.Interval != 250*time.Millisecond {
		t.Errorf("unexpected poll interval: %s", cfg.Poll.Interval)
	}
	if cfg.Poll.MaxAttempts != 10 {
		t.Errorf("unexpected poll attempts: %d", cfg.Poll.MaxAttempts)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("unexpected request timeout: %s", cfg.RequestTimeout)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("POLL_INTERVAL_MS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Poll.Interval != 500*time.Millisecond {
		t.Errorf("malformed value should fall back to default, got %s", cfg.Poll.Interval)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		return &Config{
			Port:            "8080",
			DBPath:          "./data/test.db",
			BackendURL:      "http://localhost:3001",
			AgentServiceURL: "http://localhost:3002",
			RequestTimeout:  30 * time.Second,
			Poll: PollConfig{
				Interval:    500 * time.Millisecond,
				MaxAttempts: 30,
			},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"empty backend url", func(c *Config) { c.BackendURL = "" }},
		{"empty agent url", func(c *Config) { c.AgentServiceURL = "" }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"zero poll interval", func(c *Config) { c.Poll.Interval = 0 }},
		{"zero poll attempts", func(c *Config) { c.Poll.MaxAttempts = 0 }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := valid()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	t.Parallel()

	cases := []struct {
		frontendURL string
		want        bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:3000", true},
		{"https://app.example.com", false},
	}

	for _, tc := range cases {
		cfg := &Config{FrontendURL: tc.frontendURL}
		if got := cfg.IsDevelopment(); got != tc.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tc.frontendURL, got, tc.want)
		}
	}
}

// unsetEnv clears key for the test after t.Setenv has recorded the
// original value for restoration.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset %s: %v", key, err)
	}
}
