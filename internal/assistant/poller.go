package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/canvascoach/internal/events"
	"github.com/felixgeelhaar/canvascoach/internal/observe"
)

// NoResponseText is returned when a completed run left no assistant text.
const NoResponseText = "No response from assistant."

// PollPolicy bounds the polling of one run. The delay before poll n+1 is
// min(InitialDelay*(n+1), MaxDelay).
type PollPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultPollPolicy is 30 attempts with a linear 200ms step capped at 2s.
var DefaultPollPolicy = PollPolicy{
	MaxAttempts:  30,
	InitialDelay: 200 * time.Millisecond,
	MaxDelay:     2 * time.Second,
}

// Delay returns the wait before the poll following attempt.
func (p PollPolicy) Delay(attempt int) time.Duration {
	d := p.InitialDelay * time.Duration(attempt+1)
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Poller starts runs and waits for them to reach a terminal status.
type Poller struct {
	backend Backend
	policy  PollPolicy
	obs     *observe.Observer
	bus     *events.Bus

	// Sleep waits for d or until ctx is done. Tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnAttempt, when set, is called after every poll.
	OnAttempt func(attempt, max int, status RunStatus)
}

func NewPoller(backend Backend, policy PollPolicy, obs *observe.Observer, bus *events.Bus) *Poller {
	if obs == nil {
		obs = observe.Discard()
	}
	return &Poller{
		backend: backend,
		policy:  policy,
		obs:     obs,
		bus:     bus,
		Sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RunToCompletion starts a run on the session and returns the text of the
// newest assistant message once the run completes.
func (p *Poller) RunToCompletion(ctx context.Context, sessionID, instructions string) (text string, err error) {
	ctx, span := p.obs.StartSpan(ctx, "assistant.run", "session", sessionID)
	defer func() { observe.EndSpan(span, err) }()

	runID, err := p.backend.StartRun(ctx, sessionID, instructions)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	p.bus.Publish(events.Event{Type: events.RunStarted, SessionID: sessionID, RunID: runID})

	log := p.obs.Log().With().Str("session", sessionID).Str("run", runID).Logger()

	status, err := p.backend.PollRun(ctx, sessionID, runID)
	if err != nil {
		return "", fmt.Errorf("failed to poll run: %w", err)
	}

	attempts := 0
	for status.Pending() && attempts < p.policy.MaxAttempts {
		if err := p.Sleep(ctx, p.policy.Delay(attempts)); err != nil {
			return "", err
		}
		attempts++

		status, err = p.backend.PollRun(ctx, sessionID, runID)
		if err != nil {
			return "", fmt.Errorf("failed to poll run: %w", err)
		}
		log.Debug().Int("attempt", attempts).Str("status", string(status)).Msg("run polled")
		p.bus.Publish(events.Event{
			Type:      events.RunPolled,
			SessionID: sessionID,
			RunID:     runID,
			Data:      map[string]any{"attempt": attempts, "max": p.policy.MaxAttempts, "status": string(status)},
		})
		if p.OnAttempt != nil {
			p.OnAttempt(attempts, p.policy.MaxAttempts, status)
		}
	}

	switch {
	case status == RunCompleted:
	case status.Pending():
		p.publishFailure(sessionID, runID, status)
		log.Warn().Int("attempts", attempts).Msg("run still pending after attempt cap")
		return "", fmt.Errorf("run %s after %d attempts: %w", runID, attempts, ErrRunTimedOut)
	default:
		p.publishFailure(sessionID, runID, status)
		log.Warn().Str("status", string(status)).Msg("run ended without completing")
		return "", &RunFailedError{RunID: runID, Status: status}
	}

	msgs, err := p.backend.ListMessages(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to list messages: %w", err)
	}
	// Only the newest assistant message answers this run; an older one
	// belongs to an earlier run on the same session.
	text = NoResponseText
	for _, m := range msgs {
		if m.Role != RoleAssistant {
			continue
		}
		if m.Text != "" {
			text = m.Text
		}
		break
	}

	p.bus.Publish(events.Event{Type: events.RunCompleted, SessionID: sessionID, RunID: runID})
	return text, nil
}

func (p *Poller) publishFailure(sessionID, runID string, status RunStatus) {
	p.bus.Publish(events.Event{
		Type:      events.RunFailed,
		SessionID: sessionID,
		RunID:     runID,
		Data:      map[string]any{"status": string(status)},
	})
}

// IsRunError reports whether err came from the run itself rather than
// from reaching the backend.
func IsRunError(err error) bool {
	return errors.Is(err, ErrRunFailed) || errors.Is(err, ErrRunTimedOut)
}
