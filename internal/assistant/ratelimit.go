package assistant

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

type rateLimited struct {
	next    Backend
	limiter *rate.Limiter
}

// RateLimited wraps a backend so every remote call first waits for a token
// from limiter. Waiting honours ctx cancellation.
func RateLimited(next Backend, limiter *rate.Limiter) Backend {
	return &rateLimited{next: next, limiter: limiter}
}

func (r *rateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("assistant rate limit: %w", err)
	}
	return nil
}

func (r *rateLimited) CreateSession(ctx context.Context) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}
	return r.next.CreateSession(ctx)
}

func (r *rateLimited) DeleteSession(ctx context.Context, sessionID string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.DeleteSession(ctx, sessionID)
}

func (r *rateLimited) AppendMessage(ctx context.Context, sessionID string, role Role, text string) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.AppendMessage(ctx, sessionID, role, text)
}

func (r *rateLimited) StartRun(ctx context.Context, sessionID, instructions string) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}
	return r.next.StartRun(ctx, sessionID, instructions)
}

func (r *rateLimited) PollRun(ctx context.Context, sessionID, runID string) (RunStatus, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}
	return r.next.PollRun(ctx, sessionID, runID)
}

func (r *rateLimited) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.ListMessages(ctx, sessionID)
}
