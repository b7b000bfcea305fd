package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 7070
  shutdown_timeout: 3s
fetch:
  max_payload_size: 2048
  max_redirects: 2
  timeout: 1500ms
  admin_contact: ops@example.org
  preferred_language: de
  user_agent: custom-agent/1.0
watchdog:
  timeout: 4s
logging:
  development: true
metrics:
  port: 0
ratelimit:
  rps: 5
  burst: 10
overrides:
  - pattern: '^https?://example\.org/?$'
    title: Example Org
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Fatalf("expected port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 3*time.Second {
		t.Fatalf("expected shutdown timeout 3s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Fetch.MaxPayloadSize != 2048 || cfg.Fetch.MaxRedirects != 2 {
		t.Fatalf("expected fetch limits to apply: %+v", cfg.Fetch)
	}
	if cfg.Fetch.Timeout != 1500*time.Millisecond {
		t.Fatalf("expected fetch timeout 1.5s, got %v", cfg.Fetch.Timeout)
	}
	if cfg.Fetch.AdminContact != "ops@example.org" || cfg.Fetch.PreferredLanguage != "de" {
		t.Fatalf("expected contact and language overrides: %+v", cfg.Fetch)
	}
	if cfg.Fetch.UserAgent != "custom-agent/1.0" {
		t.Fatalf("expected explicit user agent, got %q", cfg.Fetch.UserAgent)
	}
	if cfg.Watchdog.Timeout != 4*time.Second || cfg.Watchdog.Disabled {
		t.Fatalf("unexpected watchdog config: %+v", cfg.Watchdog)
	}
	if !cfg.Logging.Development {
		t.Fatal("expected development logging")
	}
	if cfg.Metrics.Port != 0 {
		t.Fatalf("expected metrics listener disabled, got %d", cfg.Metrics.Port)
	}
	if cfg.RateLimit.RPS != 5 || cfg.RateLimit.Burst != 10 {
		t.Fatalf("unexpected rate limit config: %+v", cfg.RateLimit)
	}
	if len(cfg.Overrides) != 1 || cfg.Overrides[0].Title != "Example Org" {
		t.Fatalf("expected one override entry, got %+v", cfg.Overrides)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 6643 {
		t.Fatalf("expected default port 6643, got %d", cfg.Server.Port)
	}
	if cfg.Fetch.MaxPayloadSize != 1_000_000 {
		t.Fatalf("expected default payload cap 1e6, got %d", cfg.Fetch.MaxPayloadSize)
	}
	if cfg.Fetch.MaxDecodedSize != 10_000_000 {
		t.Fatalf("expected default decoded cap 1e7, got %d", cfg.Fetch.MaxDecodedSize)
	}
	if cfg.Fetch.MaxRedirects != 5 {
		t.Fatalf("expected default max redirects 5, got %d", cfg.Fetch.MaxRedirects)
	}
	if cfg.Fetch.Timeout != 3*time.Second || cfg.Watchdog.Timeout != 3*time.Second {
		t.Fatalf("expected 3s fetch and watchdog timeouts, got %v / %v", cfg.Fetch.Timeout, cfg.Watchdog.Timeout)
	}
	if !strings.HasPrefix(cfg.Fetch.UserAgent, ServiceName+"/") {
		t.Fatalf("expected derived user agent, got %q", cfg.Fetch.UserAgent)
	}
	if !strings.Contains(cfg.Fetch.UserAgent, Repository) {
		t.Fatalf("expected repository in user agent, got %q", cfg.Fetch.UserAgent)
	}
}

func TestLoadSeedsMissingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "titlerelay.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 6643 {
		t.Fatalf("expected default port after seeding, got %d", cfg.Server.Port)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected seeded config file: %v", err)
	}
	if !strings.Contains(string(data), "max_payload_size") {
		t.Fatalf("seeded config missing defaults:\n%s", data)
	}

	// A second load reads the seeded file back.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if again.Fetch.MaxPayloadSize != cfg.Fetch.MaxPayloadSize {
		t.Fatalf("expected reload to match seeded defaults")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TITLERELAY_FETCH_MAX_REDIRECTS", "9")
	t.Setenv("PORT", "8181")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Fetch.MaxRedirects != 9 {
		t.Fatalf("expected env max redirects 9, got %d", cfg.Fetch.MaxRedirects)
	}
	if cfg.Server.Port != 8181 {
		t.Fatalf("expected PORT to bind server.port, got %d", cfg.Server.Port)
	}

	// The seeded file holds defaults, not the environment.
	data, err := os.ReadFile(DefaultConfigFile)
	if err != nil {
		t.Fatalf("expected seeded config: %v", err)
	}
	if !strings.Contains(string(data), "max_redirects: 5") {
		t.Fatalf("expected default max_redirects in seeded file:\n%s", data)
	}
}

func TestLoadSeedsWorkingDirectoryWhenNothingFound(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.File != DefaultConfigFile {
		t.Fatalf("expected seeded file %q, got %q", DefaultConfigFile, cfg.File)
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultConfigFile)); err != nil {
		t.Fatalf("expected %s in working directory: %v", DefaultConfigFile, err)
	}

	// Edit the seeded file; the next search finds it instead of seeding again.
	if err := os.WriteFile(DefaultConfigFile, []byte("server:\n  port: 7171\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	again, err := Load("")
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}
	if again.Server.Port != 7171 {
		t.Fatalf("expected port from found file, got %d", again.Server.Port)
	}
	if filepath.Base(again.File) != DefaultConfigFile {
		t.Fatalf("expected found file to be reported, got %q", again.File)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Server:   ServerConfig{Port: 6643},
		Fetch:    FetchConfig{MaxPayloadSize: 1, MaxDecodedSize: 1, Timeout: time.Second},
		Watchdog: WatchdogConfig{Timeout: time.Second},
		Metrics:  MetricsConfig{Port: 9090},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]func(c *Config){
		"port zero":          func(c *Config) { c.Server.Port = 0 },
		"port too high":      func(c *Config) { c.Server.Port = 70000 },
		"payload zero":       func(c *Config) { c.Fetch.MaxPayloadSize = 0 },
		"decoded zero":       func(c *Config) { c.Fetch.MaxDecodedSize = 0 },
		"negative redirects": func(c *Config) { c.Fetch.MaxRedirects = -1 },
		"fetch timeout zero": func(c *Config) { c.Fetch.Timeout = 0 },
		"watchdog zero":      func(c *Config) { c.Watchdog.Timeout = 0 },
		"metrics clash":      func(c *Config) { c.Metrics.Port = c.Server.Port },
		"negative rps":       func(c *Config) { c.RateLimit.RPS = -1 },
		"rps without burst":  func(c *Config) { c.RateLimit.RPS = 1 },
	}
	for name, mutate := range cases {
		cfg := valid
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	disabled := valid
	disabled.Watchdog = WatchdogConfig{Disabled: true}
	if err := disabled.Validate(); err != nil {
		t.Fatalf("expected disabled watchdog without timeout to be valid, got %v", err)
	}
}
