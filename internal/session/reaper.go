package session

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/canvascoach/internal/events"
	"github.com/felixgeelhaar/canvascoach/internal/observe"
	"github.com/felixgeelhaar/canvascoach/internal/store"
	"golang.org/x/sync/errgroup"
)

// DefaultItemTimeout bounds the reclaim of a single session during a sweep.
const DefaultItemTimeout = 30 * time.Second

// Reaper periodically reclaims sessions idle for longer than the TTL.
type Reaper struct {
	manager     *Manager
	interval    time.Duration
	concurrency int

	// ItemTimeout bounds each reclaim so one stuck delete only holds its own slot.
	ItemTimeout time.Duration
}

func NewReaper(m *Manager, interval time.Duration, concurrency int) *Reaper {
	if interval <= 0 {
		interval = m.ttl
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Reaper{
		manager:     m,
		interval:    interval,
		concurrency: concurrency,
		ItemTimeout: DefaultItemTimeout,
	}
}

// Interval returns the time between sweeps.
func (r *Reaper) Interval() time.Duration { return r.interval }

// Sweep reclaims every session last updated before now minus the TTL and
// returns how many were reclaimed. Items are independent: a failure is
// logged and the sweep carries on.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	m := r.manager
	ctx, span := m.obs.StartSpan(ctx, "session.sweep")

	cutoff := m.Now().Add(-m.ttl)
	expired, err := m.store.FindExpiredSessions(ctx, cutoff)
	if err != nil {
		m.obs.Log().Error().Err(err).Msg("failed to list expired sessions")
		observe.EndSpan(span, err)
		return 0, err
	}
	m.obs.Log().Debug().Int("count", len(expired)).Msg("found expired sessions")

	var reclaimed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for _, sub := range expired {
		g.Go(func() error {
			if r.reclaimExpired(ctx, sub, cutoff) {
				reclaimed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	observe.EndSpan(span, nil)
	return int(reclaimed.Load()), nil
}

func (r *Reaper) reclaimExpired(ctx context.Context, candidate *store.Submission, cutoff time.Time) bool {
	m := r.manager
	ctx, cancel := context.WithTimeout(ctx, r.ItemTimeout)
	defer cancel()

	log := m.obs.Log().With().Str("submission", candidate.ID).Str("session", candidate.SessionID).Logger()

	// The session may have been used or replaced since the query ran.
	sub, err := m.store.GetSubmission(ctx, candidate.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to reload submission")
		return false
	}
	if sub.SessionID != candidate.SessionID || sub.SessionLastUpdated == nil || !sub.SessionLastUpdated.Before(cutoff) {
		return false
	}

	if err := m.reclaim(ctx, sub, events.SessionReaped); err != nil {
		log.Error().Err(err).Msg("failed to reclaim session")
		return false
	}
	return true
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.Sweep(ctx)
			if err != nil {
				continue
			}
			if n > 0 {
				r.manager.obs.Log().Info().Int("reclaimed", n).Msg("reaped idle sessions")
			}
		}
	}
}

// Start runs the reaper in the background. The returned function stops it
// and waits for the current sweep to finish.
func (r *Reaper) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}
