// Package coach exposes the workshop AI operations: chat turns on a
// submission's session, session reset, content generation from
// questionnaire answers, and canvas feedback.
package coach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/canvascoach/internal/assistant"
	"github.com/felixgeelhaar/canvascoach/internal/canvas"
	"github.com/felixgeelhaar/canvascoach/internal/config"
	"github.com/felixgeelhaar/canvascoach/internal/events"
	"github.com/felixgeelhaar/canvascoach/internal/observe"
	"github.com/felixgeelhaar/canvascoach/internal/session"
	"github.com/felixgeelhaar/canvascoach/internal/store"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// cleanupTimeout bounds the best-effort delete of a throwaway session.
const cleanupTimeout = 10 * time.Second

// Coach wires the store, the assistant backend and the session manager.
type Coach struct {
	store    store.Storage
	backend  assistant.Backend
	sessions *session.Manager
	poller   *assistant.Poller
	obs      *observe.Observer
	bus      *events.Bus
	cfg      config.Config

	// Now is the clock used for generated timestamps.
	Now func() time.Time
}

func New(st store.Storage, backend assistant.Backend, cfg config.Config, obs *observe.Observer, bus *events.Bus) *Coach {
	if obs == nil {
		obs = observe.Discard()
	}
	if cfg.RateLimit.RPS > 0 {
		backend = assistant.RateLimited(backend, rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst))
	}

	policy := assistant.PollPolicy{
		MaxAttempts:  cfg.Poll.MaxAttempts,
		InitialDelay: cfg.Poll.InitialDelay,
		MaxDelay:     cfg.Poll.MaxDelay,
	}

	return &Coach{
		store:    st,
		backend:  backend,
		sessions: session.NewManager(st, backend, cfg.SessionTTL, obs, bus),
		poller:   assistant.NewPoller(backend, policy, obs, bus),
		obs:      obs,
		bus:      bus,
		cfg:      cfg,
		Now:      time.Now,
	}
}

// Sessions returns the session manager.
func (c *Coach) Sessions() *session.Manager { return c.sessions }

// Poller returns the run poller.
func (c *Coach) Poller() *assistant.Poller { return c.poller }

// NewReaper builds the idle-session reaper from the configuration.
func (c *Coach) NewReaper() *session.Reaper {
	return session.NewReaper(c.sessions, c.cfg.ReapEvery(), c.cfg.ReapConcurrency)
}

// CreateSubmission starts a participant's canvas for a workshop.
func (c *Coach) CreateSubmission(ctx context.Context, workshopID, participantID string, content []store.SectionContent) (*store.Submission, error) {
	w, err := c.store.GetWorkshop(ctx, workshopID)
	if err != nil {
		return nil, err
	}
	sub := &store.Submission{
		ID:             uuid.NewString(),
		WorkshopID:     w.ID,
		TenantID:       w.TenantID,
		ParticipantID:  participantID,
		Status:         "submitted",
		Canvas:         content,
		FeedbackStatus: store.FeedbackPending,
	}
	if err := c.store.SaveSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save submission: %w", err)
	}
	return sub, nil
}

// GetOrCreateSession returns the session bound to a submission.
func (c *Coach) GetOrCreateSession(ctx context.Context, submissionID, sectionID string) (session.Session, error) {
	sub, err := c.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return session.Session{}, err
	}
	return c.sessions.GetOrCreateSession(ctx, sub, sectionID)
}

// ChatReply is the answer to one chat turn.
type ChatReply struct {
	Text      string
	SessionID string
	SectionID string
	IsNew     bool
}

// ProcessChatTurn answers a participant's question within the submission's
// session. Without a section hint the section is detected from the question.
func (c *Coach) ProcessChatTurn(ctx context.Context, submissionID, question, sectionHint string) (reply ChatReply, err error) {
	ctx, span := c.obs.StartSpan(ctx, "coach.chat", "submission", submissionID)
	log := c.obs.Log().With().Str("submission", submissionID).Logger()
	defer func() {
		if err != nil {
			log.Error().Str("session", reply.SessionID).Err(err).Msg("chat turn failed")
		}
		observe.EndSpan(span, err)
	}()

	sub, err := c.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return reply, err
	}
	w, err := c.store.GetWorkshop(ctx, sub.WorkshopID)
	if err != nil {
		return reply, err
	}

	sectionID := sectionHint
	if sectionID == "" {
		sectionID = canvas.DetectSection(question, w)
		// A detected section the participant has not filled in yet cannot
		// prime a session; fall back to the whole canvas.
		if sectionID != "" && !hasContent(sub, sectionID) {
			log.Debug().Str("section", sectionID).Msg("detected section has no content")
			sectionID = ""
		}
	}
	reply.SectionID = sectionID

	sess, err := c.sessions.GetOrCreateSession(ctx, sub, sectionID)
	if err != nil {
		return reply, err
	}
	reply.SessionID = sess.ID
	reply.IsNew = sess.IsNew

	err = c.backend.AppendMessage(ctx, sess.ID, assistant.RoleUser, question)
	if errors.Is(err, assistant.ErrUnknownSession) && !sess.IsNew {
		// The backend lost the session before the TTL ran out.
		log.Warn().Str("session", sess.ID).Msg("session no longer exists remotely, starting a new one")
		if _, err := c.sessions.Reset(ctx, submissionID); err != nil {
			return reply, err
		}
		if sess, err = c.sessions.GetOrCreateSession(ctx, sub, sectionID); err != nil {
			return reply, err
		}
		reply.SessionID = sess.ID
		reply.IsNew = sess.IsNew
		err = c.backend.AppendMessage(ctx, sess.ID, assistant.RoleUser, question)
	}
	if err != nil {
		return reply, fmt.Errorf("failed to add question: %w", err)
	}

	text, err := c.poller.RunToCompletion(ctx, sess.ID, canvas.ChatInstructions(sectionID))
	if err != nil {
		return reply, err
	}
	reply.Text = text

	if err := c.sessions.Touch(ctx, submissionID, sess.ID); err != nil {
		log.Warn().Str("session", sess.ID).Err(err).Msg("failed to refresh session timestamp")
	}
	return reply, nil
}

func hasContent(sub *store.Submission, sectionID string) bool {
	for _, sc := range sub.Canvas {
		if sc.SectionID == sectionID {
			return true
		}
	}
	return false
}

// ResetSession discards the submission's session.
func (c *Coach) ResetSession(ctx context.Context, submissionID string) (bool, error) {
	ok, err := c.sessions.Reset(ctx, submissionID)
	if err != nil {
		c.obs.Log().Error().Str("submission", submissionID).Err(err).Msg("failed to reset session")
	}
	return ok, err
}

// GenerateInitialContent drafts content for every section of a workshop's
// canvas from questionnaire answers, using a throwaway session.
func (c *Coach) GenerateInitialContent(ctx context.Context, workshopID string, answers []store.QuestionAnswer) (sections []canvas.GeneratedSection, err error) {
	ctx, span := c.obs.StartSpan(ctx, "coach.generate", "workshop", workshopID)
	log := c.obs.Log().With().Str("workshop", workshopID).Logger()
	defer func() {
		if err != nil {
			log.Error().Err(err).Msg("content generation failed")
		}
		observe.EndSpan(span, err)
	}()

	w, err := c.store.GetWorkshop(ctx, workshopID)
	if err != nil {
		return nil, err
	}

	sessionID, err := c.backend.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer c.discard(ctx, sessionID)

	if err := c.backend.AppendMessage(ctx, sessionID, assistant.RoleSystem, canvas.GenerationPersona(w.CanvasType)); err != nil {
		return nil, fmt.Errorf("failed to add persona: %w", err)
	}
	if err := c.backend.AppendMessage(ctx, sessionID, assistant.RoleUser, canvas.GenerationPrompt(w, answers)); err != nil {
		return nil, fmt.Errorf("failed to add prompt: %w", err)
	}

	text, err := c.poller.RunToCompletion(ctx, sessionID, canvas.GenerationInstructions(w.CanvasType))
	if err != nil {
		return nil, err
	}

	sections, err = canvas.ParseGeneratedSections(text)
	if err != nil {
		log.Error().Str("session", sessionID).Str("response", text).Msg("unparseable generation response")
		return nil, err
	}
	return sections, nil
}

// GenerateFeedback produces per-section and overall feedback for a
// submission and stores it. The feedback status moves to processing, then
// to completed or failed.
func (c *Coach) GenerateFeedback(ctx context.Context, submissionID string) (result *store.Suggestions, err error) {
	ctx, span := c.obs.StartSpan(ctx, "coach.feedback", "submission", submissionID)
	log := c.obs.Log().With().Str("submission", submissionID).Logger()
	defer func() { observe.EndSpan(span, err) }()

	sub, err := c.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	w, err := c.store.GetWorkshop(ctx, sub.WorkshopID)
	if err != nil {
		return nil, err
	}

	sub.FeedbackStatus = store.FeedbackProcessing
	if err := c.store.SaveSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to mark feedback processing: %w", err)
	}

	result, err = c.feedback(ctx, sub, w)
	if err == nil {
		err = c.completeFeedback(ctx, submissionID, result)
	}
	if err != nil {
		log.Error().Err(err).Msg("feedback generation failed")
		c.markFeedbackFailed(ctx, submissionID)
		c.bus.Publish(events.Event{Type: events.FeedbackFailed, SubmissionID: submissionID})
		return nil, err
	}

	c.bus.Publish(events.Event{Type: events.FeedbackCompleted, SubmissionID: submissionID})
	return result, nil
}

// feedback runs one request per canvas section and a final overall request
// on a single throwaway session. Requests are sequential since a session
// accepts one active run at a time.
func (c *Coach) feedback(ctx context.Context, sub *store.Submission, w *store.Workshop) (*store.Suggestions, error) {
	priming, err := canvas.FormatContext(sub, w, "")
	if err != nil {
		return nil, err
	}

	sessionID, err := c.backend.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer c.discard(ctx, sessionID)

	if err := c.backend.AppendMessage(ctx, sessionID, assistant.RoleSystem, priming); err != nil {
		return nil, fmt.Errorf("failed to add canvas context: %w", err)
	}

	out := &store.Suggestions{SectionFeedback: make([]store.SectionFeedback, 0, len(sub.Canvas))}
	for _, content := range sub.Canvas {
		cfg, ok := w.Section(content.SectionID)
		if !ok {
			out.SectionFeedback = append(out.SectionFeedback, store.SectionFeedback{
				SectionID: content.SectionID,
				Feedback:  canvas.NoSectionFeedback,
			})
			continue
		}

		if err := c.backend.AppendMessage(ctx, sessionID, assistant.RoleUser, canvas.SectionFeedbackRequest(cfg, content)); err != nil {
			return nil, fmt.Errorf("failed to request feedback for %s: %w", content.SectionID, err)
		}
		text, err := c.poller.RunToCompletion(ctx, sessionID, canvas.SectionFeedbackInstructions(cfg))
		if err != nil {
			return nil, fmt.Errorf("feedback for %s: %w", content.SectionID, err)
		}
		out.SectionFeedback = append(out.SectionFeedback, store.SectionFeedback{SectionID: content.SectionID, Feedback: text})
	}

	if err := c.backend.AppendMessage(ctx, sessionID, assistant.RoleUser, canvas.OverallFeedbackRequest(w.CanvasType)); err != nil {
		return nil, fmt.Errorf("failed to request overall feedback: %w", err)
	}
	overall, err := c.poller.RunToCompletion(ctx, sessionID, canvas.OverallFeedbackInstructions)
	if err != nil {
		return nil, fmt.Errorf("overall feedback: %w", err)
	}
	out.OverallFeedback = overall
	out.GeneratedAt = c.Now().UTC()
	return out, nil
}

func (c *Coach) completeFeedback(ctx context.Context, submissionID string, result *store.Suggestions) error {
	// Reload so a session bound while feedback ran is kept.
	sub, err := c.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	sub.Suggestions = result
	sub.FeedbackStatus = store.FeedbackCompleted
	if err := c.store.SaveSubmission(ctx, sub); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

func (c *Coach) markFeedbackFailed(ctx context.Context, submissionID string) {
	ctx = context.WithoutCancel(ctx)
	sub, err := c.store.GetSubmission(ctx, submissionID)
	if err == nil {
		sub.FeedbackStatus = store.FeedbackFailed
		err = c.store.SaveSubmission(ctx, sub)
	}
	if err != nil {
		c.obs.Log().Error().Str("submission", submissionID).Err(err).Msg("failed to update feedback status")
	}
}

// discard deletes a throwaway session. It still runs when ctx is cancelled.
func (c *Coach) discard(ctx context.Context, sessionID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := c.backend.DeleteSession(ctx, sessionID); err != nil {
		c.obs.Log().Error().Str("session", sessionID).Err(err).Msg("failed to delete throwaway session")
	}
}

// IsNotFound reports whether err means a workshop, submission or section
// does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
