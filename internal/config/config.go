// Package config holds the tunables of the session manager: session TTL,
// reaper cadence, run polling limits and backend rate limiting.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Poll bounds how long a single run is tracked.
type Poll struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// RateLimit throttles calls to the assistant backend. RPS <= 0 disables it.
type RateLimit struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Config is the full set of tunables.
type Config struct {
	SessionTTL      time.Duration `yaml:"session_ttl"`
	// ReapInterval is the time between reaper sweeps. Zero follows SessionTTL.
	ReapInterval    time.Duration `yaml:"reap_interval"`
	ReapConcurrency int           `yaml:"reap_concurrency"`
	Poll            Poll          `yaml:"poll"`
	RateLimit       RateLimit     `yaml:"rate_limit"`
}

// Default provides the documented defaults.
func Default() Config {
	return Config{
		SessionTTL:      time.Hour,
		ReapConcurrency: 4,
		Poll: Poll{
			MaxAttempts:  30,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
		},
		RateLimit: RateLimit{Burst: 1},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Getter is the read side of the store's configuration table.
type Getter interface {
	GetConfig(key string) (string, error)
}

// Keys recognised in the store's configuration table.
const (
	KeySessionTTL       = "session.ttl"
	KeyReapInterval     = "session.reap_interval"
	KeyReapConcurrency  = "session.reap_concurrency"
	KeyPollMaxAttempts  = "poll.max_attempts"
	KeyPollInitialDelay = "poll.initial_delay"
	KeyPollMaxDelay     = "poll.max_delay"
	KeyRateLimitRPS     = "rate_limit.rps"
	KeyRateLimitBurst   = "rate_limit.burst"
)

// ApplyStore overrides fields with values set in the store. Unset keys are
// left alone; malformed values are reported.
func (c *Config) ApplyStore(g Getter) error {
	durations := map[string]*time.Duration{
		KeySessionTTL:       &c.SessionTTL,
		KeyReapInterval:     &c.ReapInterval,
		KeyPollInitialDelay: &c.Poll.InitialDelay,
		KeyPollMaxDelay:     &c.Poll.MaxDelay,
	}
	for key, dst := range durations {
		v, err := g.GetConfig(key)
		if err != nil {
			return err
		}
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config %s: %w", key, err)
		}
		*dst = d
	}

	ints := map[string]*int{
		KeyReapConcurrency: &c.ReapConcurrency,
		KeyPollMaxAttempts: &c.Poll.MaxAttempts,
		KeyRateLimitBurst:  &c.RateLimit.Burst,
	}
	for key, dst := range ints {
		v, err := g.GetConfig(key)
		if err != nil {
			return err
		}
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config %s: %w", key, err)
		}
		*dst = n
	}

	if v, err := g.GetConfig(KeyRateLimitRPS); err != nil {
		return err
	} else if v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config %s: %w", KeyRateLimitRPS, err)
		}
		c.RateLimit.RPS = rps
	}

	return c.Validate()
}

// ReapEvery returns the time between reaper sweeps, resolved against the
// final SessionTTL when no interval was set.
func (c Config) ReapEvery() time.Duration {
	if c.ReapInterval > 0 {
		return c.ReapInterval
	}
	return c.SessionTTL
}

// Validate rejects settings the session manager cannot run with.
func (c Config) Validate() error {
	switch {
	case c.SessionTTL <= 0:
		return fmt.Errorf("session_ttl must be positive, got %s", c.SessionTTL)
	case c.ReapInterval < 0:
		return fmt.Errorf("reap_interval must not be negative, got %s", c.ReapInterval)
	case c.ReapConcurrency < 1:
		return fmt.Errorf("reap_concurrency must be at least 1, got %d", c.ReapConcurrency)
	case c.Poll.MaxAttempts < 1:
		return fmt.Errorf("poll.max_attempts must be at least 1, got %d", c.Poll.MaxAttempts)
	case c.Poll.InitialDelay < 0 || c.Poll.MaxDelay < 0:
		return fmt.Errorf("poll delays must not be negative")
	case c.RateLimit.RPS > 0 && c.RateLimit.Burst < 1:
		return fmt.Errorf("rate_limit.burst must be at least 1 when rps is set")
	}
	return nil
}
