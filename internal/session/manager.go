package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/canvascoach/internal/assistant"
	"github.com/felixgeelhaar/canvascoach/internal/canvas"
	"github.com/felixgeelhaar/canvascoach/internal/events"
	"github.com/felixgeelhaar/canvascoach/internal/observe"
	"github.com/felixgeelhaar/canvascoach/internal/store"
)

// ErrSessionCreationFailed wraps any failure to create, prime or persist a
// new session.
var ErrSessionCreationFailed = errors.New("session creation failed")

// DefaultTTL is how long an idle session stays reusable.
const DefaultTTL = time.Hour

// DefaultCreateTimeout bounds a shared get-or-create call.
const DefaultCreateTimeout = time.Minute

// Session is the result of GetOrCreateSession.
type Session struct {
	ID    string
	IsNew bool
}

// Manager owns the binding between submissions and assistant sessions.
type Manager struct {
	store    store.Storage
	backend  assistant.Backend
	cache    *Cache
	registry *Registry
	ttl      time.Duration
	obs      *observe.Observer
	bus      *events.Bus

	// Now is the clock. Tests replace it.
	Now func() time.Time

	// CreateTimeout bounds the get-or-create call shared by concurrent
	// callers. It runs detached from any single caller's cancellation.
	CreateTimeout time.Duration
}

func NewManager(s store.Storage, b assistant.Backend, ttl time.Duration, obs *observe.Observer, bus *events.Bus) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if obs == nil {
		obs = observe.Discard()
	}
	return &Manager{
		store:    s,
		backend:  b,
		cache:    NewCache(),
		registry: NewRegistry(),
		ttl:      ttl,
		obs:      obs,
		bus:      bus,
		Now:      time.Now,

		CreateTimeout: DefaultCreateTimeout,
	}
}

// TTL returns the idle time after which a session is no longer reused.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Cache exposes the process-local session cache.
func (m *Manager) Cache() *Cache { return m.cache }

type outcome struct {
	sessionID string
	created   bool
}

// GetOrCreateSession returns the session bound to sub, creating and priming
// one when there is none or the bound one is older than the TTL. Concurrent
// calls for the same submission share one creation; only the caller that
// performed it sees IsNew.
func (m *Manager) GetOrCreateSession(ctx context.Context, sub *store.Submission, sectionID string) (Session, error) {
	ctx, span := m.obs.StartSpan(ctx, "session.get_or_create", "submission", sub.ID, "section", sectionID)

	v, joined, err := m.registry.Do(ctx, sub.ID, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.CreateTimeout)
		defer cancel()
		return m.createOrReuse(shared, sub.ID, sectionID)
	})
	observe.EndSpan(span, err)
	if err != nil {
		return Session{}, err
	}

	out := v.(outcome)
	return Session{ID: out.sessionID, IsNew: out.created && !joined}, nil
}

func (m *Manager) createOrReuse(ctx context.Context, submissionID, sectionID string) (outcome, error) {
	log := m.obs.Log().With().Str("submission", submissionID).Logger()

	// The store is authoritative; the caller's copy may be stale.
	current, err := m.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return outcome{}, err
	}

	now := m.Now()
	if current.HasSession() && now.Sub(*current.SessionLastUpdated) < m.ttl {
		if !m.cache.Touch(submissionID, now) {
			m.cache.Put(submissionID, Entry{SessionID: current.SessionID, LastUsed: now, Active: true})
		}
		log.Debug().Str("session", current.SessionID).Msg("reusing session")
		m.bus.Publish(events.Event{Type: events.SessionReused, SubmissionID: submissionID, SessionID: current.SessionID})
		return outcome{sessionID: current.SessionID}, nil
	}

	workshop, err := m.store.GetWorkshop(ctx, current.WorkshopID)
	if err != nil {
		return outcome{}, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}
	priming, err := canvas.FormatContext(current, workshop, sectionID)
	if err != nil {
		return outcome{}, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}

	stale := current.SessionID

	sessionID, err := m.backend.CreateSession(ctx)
	if err != nil {
		return outcome{}, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}
	log = log.With().Str("session", sessionID).Logger()

	if err := m.backend.AppendMessage(ctx, sessionID, assistant.RoleSystem, priming); err != nil {
		m.deleteRemote(ctx, sessionID, submissionID)
		return outcome{}, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}

	current.SessionID = sessionID
	current.SessionLastUpdated = &now
	if err := m.store.SaveSubmission(ctx, current); err != nil {
		m.deleteRemote(ctx, sessionID, submissionID)
		return outcome{}, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}

	m.cache.Put(submissionID, Entry{SessionID: sessionID, LastUsed: now, Active: true})
	log.Info().Msg("created session")
	m.bus.Publish(events.Event{Type: events.SessionCreated, SubmissionID: submissionID, SessionID: sessionID})

	// An expired session is no longer referenced once replaced, so the
	// reaper would never find it.
	if stale != "" && stale != sessionID {
		m.deleteRemote(ctx, stale, submissionID)
	}

	return outcome{sessionID: sessionID, created: true}, nil
}

// Touch records a successful use of sessionID. It does nothing when the
// submission has meanwhile been bound to another session or reset.
func (m *Manager) Touch(ctx context.Context, submissionID, sessionID string) error {
	current, err := m.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if current.SessionID != sessionID {
		return nil
	}
	now := m.Now()
	current.SessionLastUpdated = &now
	if err := m.store.SaveSubmission(ctx, current); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	m.cache.Touch(submissionID, now)
	return nil
}

// Reset discards the submission's session. The remote delete is
// best-effort; the local pointer is always cleared. It returns true whenever
// the submission exists, bound or not.
func (m *Manager) Reset(ctx context.Context, submissionID string) (bool, error) {
	ctx, span := m.obs.StartSpan(ctx, "session.reset", "submission", submissionID)
	var err error
	defer func() { observe.EndSpan(span, err) }()

	var sub *store.Submission
	sub, err = m.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return false, err
	}
	if sub.SessionID == "" && sub.SessionLastUpdated == nil {
		m.cache.Remove(submissionID)
		return true, nil
	}

	if err = m.reclaim(ctx, sub, events.SessionReset); err != nil {
		return false, err
	}
	return true, nil
}

// reclaim clears the session pointer in the store, then deletes the remote
// session, logging instead of failing when that does not work. If the
// pointer cannot be cleared the remote session is kept so a later attempt
// can still find it. The cache entry is dropped too unless reason is
// SessionReaped: the reaper works from the store alone.
func (m *Manager) reclaim(ctx context.Context, sub *store.Submission, reason events.Type) error {
	sessionID := sub.SessionID
	evict := reason != events.SessionReaped
	if evict {
		m.cache.Deactivate(sub.ID)
	}

	sub.ClearSession()
	if err := m.store.SaveSubmission(ctx, sub); err != nil {
		return fmt.Errorf("failed to clear session of submission %s: %w", sub.ID, err)
	}
	if evict {
		m.cache.Remove(sub.ID)
	}

	if sessionID != "" {
		m.deleteRemote(ctx, sessionID, sub.ID)
	}

	m.obs.Log().Debug().Str("submission", sub.ID).Str("session", sessionID).Msg(string(reason))
	m.bus.Publish(events.Event{Type: reason, SubmissionID: sub.ID, SessionID: sessionID})
	return nil
}

func (m *Manager) deleteRemote(ctx context.Context, sessionID, submissionID string) {
	if err := m.backend.DeleteSession(ctx, sessionID); err != nil {
		m.obs.Log().Error().
			Str("submission", submissionID).
			Str("session", sessionID).
			Err(err).
			Msg("failed to delete remote session")
	}
}
