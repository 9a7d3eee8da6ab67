package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/canvascoach/internal/assistant"
	"github.com/felixgeelhaar/canvascoach/internal/coach"
	"github.com/felixgeelhaar/canvascoach/internal/config"
	"github.com/felixgeelhaar/canvascoach/internal/credential"
	"github.com/felixgeelhaar/canvascoach/internal/events"
	"github.com/felixgeelhaar/canvascoach/internal/observe"
	"github.com/felixgeelhaar/canvascoach/internal/provider"
	"github.com/felixgeelhaar/canvascoach/internal/store"
)

// app holds everything a command needs. Close releases it.
type app struct {
	obs     *observe.Observer
	store   store.Storage
	vault   *credential.Vault
	cfg     config.Config
	bus     *events.Bus
	backend assistant.Backend
	coach   *coach.Coach

	closers []func()
}

func (o *options) storePath() string {
	if o.dbPath != "" {
		return o.dbPath
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".canvascoach", "canvascoach.db")
}

func (o *options) observer() *observe.Observer {
	if o.jsonLogs {
		return observe.NewJSON(os.Stderr, o.verbose)
	}
	return observe.New(os.Stderr, o.verbose)
}

// openStore opens only the store, for commands that never reach the assistant.
func (o *options) openStore() (*app, error) {
	a := &app{obs: o.observer(), bus: events.NewBus()}

	s, err := store.NewSQLiteStore(o.storePath())
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}
	a.store = s
	a.closers = append(a.closers, func() { s.Close() })

	v, err := credential.NewVault()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.vault = v

	cfg, err := config.Load(o.configPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := cfg.ApplyStore(s); err != nil {
		a.Close()
		return nil, err
	}
	a.cfg = cfg

	if o.verbose {
		a.bus.SubscribeAll(func(e events.Event) {
			a.obs.Log().Debug().
				Str("event", string(e.Type)).
				Str("submission", e.SubmissionID).
				Str("session", e.SessionID).
				Str("run", e.RunID).
				Msg("lifecycle event")
		})
	}
	return a, nil
}

// open opens the store and connects the assistant backend.
func (o *options) open() (*app, error) {
	a, err := o.openStore()
	if err != nil {
		return nil, err
	}

	backend, err := o.newBackend(a)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize %s backend: %w", o.providerType, err)
	}
	a.backend = backend
	a.coach = coach.New(a.store, backend, a.cfg, a.obs, a.bus)
	return a, nil
}

func (o *options) newBackend(a *app) (assistant.Backend, error) {
	secret := func(key string) string {
		v, err := a.vault.Get(a.store, key)
		if err != nil {
			a.obs.Log().Warn().Str("key", key).Err(err).Msg("failed to read credential")
		}
		return v
	}
	plain := func(key string) string {
		v, _ := a.store.GetConfig(key)
		return v
	}

	var p provider.Provider
	var err error
	switch o.providerType {
	case "assistants":
		return assistant.NewOpenAIBackend(secret("openai.api_key"), plain("openai.base_url"), plain("openai.assistant_id"))
	case "openai":
		p, err = provider.NewOpenAIProvider(secret("openai.api_key"), plain("openai.base_url"), o.modelName)
	case "ollama":
		p, err = provider.NewOllamaProvider(o.modelName)
	case "gemini":
		p, err = provider.NewGeminiProvider(secret("gemini.api_key"), o.modelName)
	case "anthropic":
		p, err = provider.NewAnthropicProvider(secret("anthropic.api_key"), o.modelName)
	case "stub":
		p = provider.NewStubProvider()
	default:
		return nil, fmt.Errorf("unknown provider %q", o.providerType)
	}
	if err != nil {
		return nil, err
	}

	cb := assistant.NewChatBackend(p)
	a.closers = append(a.closers, func() { cb.Close() })
	return cb, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.obs.Close()
}
