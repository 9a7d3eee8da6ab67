package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type mapGetter map[string]string

func (m mapGetter) GetConfig(key string) (string, error) { return m[key], nil }

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.SessionTTL != time.Hour || cfg.ReapEvery() != time.Hour {
		t.Errorf("unexpected TTL/interval: %s %s", cfg.SessionTTL, cfg.ReapEvery())
	}
	if cfg.Poll.MaxAttempts != 30 || cfg.Poll.InitialDelay != 200*time.Millisecond || cfg.Poll.MaxDelay != 2*time.Second {
		t.Errorf("unexpected poll defaults: %+v", cfg.Poll)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "session_ttl: 30m\npoll:\n  max_attempts: 10\n  initial_delay: 50ms\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %s", cfg.SessionTTL)
	}
	if cfg.Poll.MaxAttempts != 10 || cfg.Poll.InitialDelay != 50*time.Millisecond {
		t.Errorf("unexpected poll: %+v", cfg.Poll)
	}
	if cfg.Poll.MaxDelay != 2*time.Second {
		t.Errorf("unset field should keep default, got %s", cfg.Poll.MaxDelay)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyStore(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyStore(mapGetter{
		KeySessionTTL:      "2h",
		KeyPollMaxAttempts: "5",
		KeyRateLimitRPS:    "2.5",
		KeyRateLimitBurst:  "3",
	})
	if err != nil {
		t.Fatalf("ApplyStore failed: %v", err)
	}
	if cfg.SessionTTL != 2*time.Hour || cfg.Poll.MaxAttempts != 5 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.RateLimit.RPS != 2.5 || cfg.RateLimit.Burst != 3 {
		t.Errorf("rate limit not applied: %+v", cfg.RateLimit)
	}
	if cfg.ReapInterval != 0 || cfg.ReapEvery() != 2*time.Hour {
		t.Errorf("reap interval should follow the 2h TTL, got %s", cfg.ReapEvery())
	}
}

func TestReapEvery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("session_ttl: 30m\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ReapEvery() != 30*time.Minute {
		t.Errorf("expected interval to follow the file TTL, got %s", cfg.ReapEvery())
	}

	if err := cfg.ApplyStore(mapGetter{KeySessionTTL: "3h"}); err != nil {
		t.Fatalf("ApplyStore failed: %v", err)
	}
	if cfg.ReapEvery() != 3*time.Hour {
		t.Errorf("expected interval to follow the store TTL, got %s", cfg.ReapEvery())
	}

	if err := cfg.ApplyStore(mapGetter{KeyReapInterval: "10m"}); err != nil {
		t.Fatalf("ApplyStore failed: %v", err)
	}
	if cfg.ReapEvery() != 10*time.Minute {
		t.Errorf("explicit interval should win, got %s", cfg.ReapEvery())
	}

	cfg.ReapInterval = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for a negative interval")
	}
}

func TestApplyStore_Invalid(t *testing.T) {
	cases := map[string]mapGetter{
		"bad duration": {KeySessionTTL: "soon"},
		"bad int":      {KeyPollMaxAttempts: "many"},
		"zero ttl":     {KeySessionTTL: "0s"},
	}
	for name, g := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.ApplyStore(g); err == nil {
				t.Error("expected error")
			}
		})
	}

	cfg := Default()
	err := cfg.ApplyStore(mapGetter{KeyPollMaxAttempts: "0"})
	if err == nil || !strings.Contains(err.Error(), "max_attempts") {
		t.Errorf("expected max_attempts error, got %v", err)
	}
}
